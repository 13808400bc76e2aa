package common

// File permission constants
const (
	// FilePermissionSecure is used for config files that may hold credentials
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for derived table output and manifests
	FilePermissionNormal = 0644

	DirPermissionSecure = 0700
	DirPermissionNormal = 0755
)
