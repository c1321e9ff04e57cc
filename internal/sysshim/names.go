package sysshim

// Stub entrypoint names, matching the property names Go's js/wasm runtime
// looks up on the global fs and process objects. The bridge package's
// newGlobal routes calls against these objects through Stub rather than
// implementing them, since spec.md's Non-goals exclude a real filesystem;
// the process identity queries and fs.fsync are the exceptions it answers
// directly.
const (
	FsOpen      = "fs.open"
	FsStat      = "fs.stat"
	FsFstat     = "fs.fstat"
	FsLstat     = "fs.lstat"
	FsClose     = "fs.close"
	FsRead      = "fs.read"
	FsReaddir   = "fs.readdir"
	FsMkdir     = "fs.mkdir"
	FsRmdir     = "fs.rmdir"
	FsRename    = "fs.rename"
	FsUnlink    = "fs.unlink"
	FsUtimes    = "fs.utimes"
	FsChmod     = "fs.chmod"
	FsFchmod    = "fs.fchmod"
	FsChown     = "fs.chown"
	FsFchown    = "fs.fchown"
	FsLchown    = "fs.lchown"
	FsTruncate  = "fs.truncate"
	FsFtruncate = "fs.ftruncate"
	FsReadlink  = "fs.readlink"
	FsLink      = "fs.link"
	FsSymlink   = "fs.symlink"
	FsFsync     = "fs.fsync"

	ProcessGetuid      = "process.getuid"
	ProcessGetgid      = "process.getgid"
	ProcessGeteuid     = "process.geteuid"
	ProcessGetegid     = "process.getegid"
	ProcessGetgroups   = "process.getgroups"
	ProcessUmask       = "process.umask"
	ProcessCwd         = "process.cwd"
	ProcessChdir       = "process.chdir"
)
