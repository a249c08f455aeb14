// pkg/asp/constants.go
package asp

// Member names inside an ASP container. Archives store them with a "./"
// prefix; lookups accept either form.
const (
	MemberFileList    = "06.LISTS/DESTDIR.lst.xz"
	MemberChecksums   = "06.LISTS/DESTDIR.sha512.xz"
	MemberDeps        = "06.LISTS/DESTDIR.dep_c.xz"
	MemberBuildLogs   = "05.BUILD_LOGS.tar.xz"
	MemberPayload     = "04.DESTDIR.tar.xz"
	MemberPayloadZstd = "04.DESTDIR.tar.zst"
	MemberPostInstall = "post_install.py"
	MemberManifest    = "package.sha512"
)

// Extension of ASP files
const Extension = ".asp"

// payloadMembers in order of preference
var payloadMembers = []string{MemberPayload, MemberPayloadZstd}
