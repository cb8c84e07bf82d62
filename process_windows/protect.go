package process_windows

// Page protection and allocation values from winnt.h. They are duplicated here so
// the translation to map permissions builds and tests on every platform.
const (
	pageNoAccess         = 0x01
	pageReadOnly         = 0x02
	pageReadWrite        = 0x04
	pageWriteCopy        = 0x08
	pageExecute          = 0x10
	pageExecuteRead      = 0x20
	pageExecuteReadWrite = 0x40
	pageExecuteWriteCopy = 0x80
	pageGuard            = 0x100

	memCommit  = 0x1000
	memPrivate = 0x20000
)

// PermsFromProtect renders a VirtualQueryEx region as a /proc/<pid>/maps style
// permission string so the shared memory_map helpers work unchanged.
func PermsFromProtect(state, protect, typ uint32) string {
	if state != memCommit || protect&pageGuard != 0 || protect&pageNoAccess != 0 {
		return "---p"
	}

	perms := []byte("---s")
	if typ == memPrivate {
		perms[3] = 'p'
	}
	switch protect &^ 0x700 {
	case pageReadOnly:
		perms[0] = 'r'
	case pageReadWrite, pageWriteCopy:
		perms[0], perms[1] = 'r', 'w'
	case pageExecute:
		perms[2] = 'x'
	case pageExecuteRead:
		perms[0], perms[2] = 'r', 'x'
	case pageExecuteReadWrite, pageExecuteWriteCopy:
		perms[0], perms[1], perms[2] = 'r', 'w', 'x'
	}
	return string(perms)
}
