package process_windows

import (
	"testing"

	"memwatch/process/memory_map"

	"github.com/stretchr/testify/assert"
)

func TestPermsFromProtect(t *testing.T) {
	tests := []struct {
		name    string
		state   uint32
		protect uint32
		typ     uint32
		want    string
	}{
		{"reserved", 0x2000, pageReadWrite, memPrivate, "---p"},
		{"guard", memCommit, pageReadWrite | pageGuard, memPrivate, "---p"},
		{"heap", memCommit, pageReadWrite, memPrivate, "rw-p"},
		{"code", memCommit, pageExecuteRead, 0x1000000, "r-xs"},
		{"rdata", memCommit, pageReadOnly, 0x1000000, "r--s"},
		{"jit", memCommit, pageExecuteReadWrite, memPrivate, "rwxp"},
		{"nocache", memCommit, pageReadWrite | 0x200, memPrivate, "rw-p"},
		{"execute only", memCommit, pageExecute, memPrivate, "--xp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := PermsFromProtect(tt.state, tt.protect, tt.typ)
			assert.Equal(t, tt.want, perms)
			item := memory_map.MemoryMapItem{Perms: perms}
			assert.Equal(t, perms[0] == 'r', item.IsReadable())
		})
	}
}
