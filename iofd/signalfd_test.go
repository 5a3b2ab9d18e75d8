// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package iofd_test

import (
	"testing"

	"code.hybscloud.com/excimer/iofd"
)

func TestSigSet_AddDelHas(t *testing.T) {
	var set iofd.SigSet
	set.Add(iofd.SIGUSR1)
	if !set.Has(iofd.SIGUSR1) {
		t.Fatal("expected SIGUSR1 in set")
	}
	if set.Has(iofd.SIGUSR2) {
		t.Fatal("did not expect SIGUSR2 in set")
	}
	set.Del(iofd.SIGUSR1)
	if set.Has(iofd.SIGUSR1) {
		t.Fatal("expected SIGUSR1 removed from set")
	}
	if !set.Empty() {
		t.Fatal("expected empty set")
	}
}

func TestSigSet_OutOfRangeIsNoop(t *testing.T) {
	var set iofd.SigSet
	set.Add(0)
	set.Add(65)
	if !set.Empty() {
		t.Fatal("out-of-range signal numbers must not mutate the set")
	}
}

func TestNewSignalFD_MasksSIGUSR1(t *testing.T) {
	var mask iofd.SigSet
	mask.Add(iofd.SIGUSR1)

	sfd, err := iofd.NewSignalFD(mask)
	if err != nil {
		t.Fatalf("NewSignalFD failed: %v", err)
	}
	defer sfd.Close()

	if sfd.Fd() < 0 {
		t.Errorf("SignalFD.Fd() returned invalid fd: %d", sfd.Fd())
	}
	if sfd.Mask() != mask {
		t.Errorf("Mask() = %v, want %v", sfd.Mask(), mask)
	}
}

func TestSignalFD_SetBlockingThenClose(t *testing.T) {
	var mask iofd.SigSet
	mask.Add(iofd.SIGUSR2)

	sfd, err := iofd.NewSignalFD(mask)
	if err != nil {
		t.Fatalf("NewSignalFD failed: %v", err)
	}
	if err := sfd.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking failed: %v", err)
	}
	if err := sfd.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
