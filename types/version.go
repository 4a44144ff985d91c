package types

// Version is the canonical project version.
// The CLI, the sync report, and the journal record format share this version
// per the lockstep versioning policy.
const Version = "0.4.2"

// ManifestSchemaVersion is the remote catalog schema version this engine
// accepts. The hub publishes it in the manifest's schema_version field.
const ManifestSchemaVersion = "1"
