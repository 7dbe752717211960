// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


//go:build !windows

package rest

import (
	"fmt"
	"os"
	"syscall"

	nl "github.com/mlnoga/blurbench/internal"
)

// Confines the serving process to the given directory via chroot (requires root),
// then drops to the given user ID. Empty chroot and negative setuid skip the step.
// Job file patterns are resolved relative to the new root
func MakeSandbox(chroot string, setuid int) error {
	if len(chroot)>0 {
		nl.LogPrintf("Changing filesystem root to %s...\n", chroot)
		if err:=syscall.Chroot(chroot); err!=nil { return fmt.Errorf("chroot(%s): %w", chroot, err) }
		if err:=os.Chdir("/"); err!=nil { return fmt.Errorf("chdir to new root: %w", err) }
	}
	if setuid>=0 {
		nl.LogPrintf("Setting user id from %d/%d to %d\n", syscall.Getuid(), syscall.Geteuid(), setuid)
		if err:=syscall.Setuid(setuid); err!=nil { return fmt.Errorf("setuid(%d): %w", setuid, err) }
	}
	return nil
}
