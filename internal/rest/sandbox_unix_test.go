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
	"os"
	"path/filepath"
	"testing"
)

func TestMakeSandboxNoop(t *testing.T) {
	wd, err:=os.Getwd()
	if err!=nil { t.Fatal(err) }
	if err:=MakeSandbox("", -1); err!=nil { t.Errorf("no-op sandbox: %v", err) }
	if now, _:=os.Getwd(); now!=wd { t.Errorf("working directory changed from %s to %s", wd, now) }
}

func TestMakeSandboxMissingRoot(t *testing.T) {
	missing:=filepath.Join(t.TempDir(), "does-not-exist")
	if err:=MakeSandbox(missing, -1); err==nil { t.Errorf("chroot to %s: want error", missing) }
}
