//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"unsafe"

	"memwatch/process"

	"golang.org/x/sys/unix"
)

// iovMax is the kernel's IOV_MAX; larger batches are split across calls.
const iovMax = 1024

// process_vm_readv reads every remote range into the matching local buffer with a
// single syscall. The kernel stops at the first remote range that faults, so the
// returned byte count identifies the prefix of ranges that were fully read.
func process_vm_readv(
	pid process.ProcessID,
	localBufs [][]byte,
	remote []process.ScatterRequest,
) (int, error) {
	localIov := make([]unix.Iovec, len(localBufs))
	for i := range localBufs {
		localIov[i].Base = &localBufs[i][0]
		localIov[i].SetLen(len(localBufs[i]))
	}

	remoteIov := make([]unix.RemoteIovec, len(remote))
	for i, r := range remote {
		remoteIov[i] = unix.RemoteIovec{
			Base: uintptr(r.Address),
			Len:  int(r.Size),
		}
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                           // Remote process PID
		uintptr(unsafe.Pointer(&localIov[0])),  // Local iovecs
		uintptr(len(localIov)),                 // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov[0])), // Remote iovecs
		uintptr(len(remoteIov)),                // Number of remote iovecs
		uintptr(0),                             // Flags (reserved for future use)
	)

	if errno != 0 {
		if errno == unix.ESRCH {
			return 0, process.ErrProcessNotOpen
		}
		return 0, fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), errno)
	}

	return int(n), nil
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	pid := p.pid
	valid := p.isValidAddressInternal(addr)
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if !valid {
		return nil, process.ErrAddressNotMapped
	}

	buf := make([]byte, size)
	n, err := process_vm_readv(pid, [][]byte{buf}, []process.ScatterRequest{{Address: addr, Size: size}})
	if err != nil {
		return nil, fmt.Errorf("process_vm_readv: failed to read process memory: %w", err)
	}
	if n != int(size) {
		return nil, fmt.Errorf("partial read: %d of %d bytes", n, size)
	}

	return buf, nil
}

// ReadScatter reads every request with as few process_vm_readv calls as possible:
// one per iovMax requests when everything is mapped. A range that faults is marked
// failed and the remainder is re-issued from the entry after it.
func (p *LinuxProcess) ReadScatter(reqs []process.ScatterRequest) ([]process.ScatterResult, error) {
	p.mu.Lock()
	pid := p.pid
	results := make([]process.ScatterResult, len(reqs))
	var pending []int
	for i, r := range reqs {
		results[i].Address = r.Address
		switch {
		case r.Size == 0:
			results[i].Data = []byte{}
		case !p.isValidAddressInternal(r.Address) || !p.isValidAddressInternal(r.Address.Add(r.Size-1)):
			results[i].Err = process.ErrAddressNotMapped
		default:
			pending = append(pending, i)
		}
	}
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	for len(pending) > 0 {
		chunk := pending[:min(len(pending), iovMax)]

		bufs := make([][]byte, len(chunk))
		remote := make([]process.ScatterRequest, len(chunk))
		for j, idx := range chunk {
			bufs[j] = make([]byte, reqs[idx].Size)
			remote[j] = reqs[idx]
		}

		n, err := process_vm_readv(pid, bufs, remote)
		if errors.Is(err, process.ErrProcessNotOpen) {
			return nil, err
		}
		if err != nil {
			// the first range faulted outright
			results[chunk[0]].Err = err
			pending = pending[1:]
			continue
		}

		done := 0
		for j, idx := range chunk {
			if n < len(bufs[j]) {
				break
			}
			n -= len(bufs[j])
			results[idx].Data = bufs[j]
			done++
		}
		if done < len(chunk) {
			results[chunk[done]].Err = fmt.Errorf("partial read at %s", reqs[chunk[done]].Address)
			done++
		}
		pending = pending[done:]
	}

	return results, nil
}
