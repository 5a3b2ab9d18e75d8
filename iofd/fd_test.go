// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package iofd_test

import (
	"testing"

	"code.hybscloud.com/excimer/iofd"
)

func TestFD_InvalidIsNotValid(t *testing.T) {
	fd := iofd.InvalidFD
	if fd.Valid() {
		t.Fatal("InvalidFD must not be Valid")
	}
	if fd.Fd() != -1 {
		t.Fatalf("InvalidFD.Fd() = %d, want -1", fd.Fd())
	}
}

func TestFD_CloseIsIdempotent(t *testing.T) {
	efd, err := iofd.NewEventFD(0)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	if err := efd.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := efd.Close(); err != nil {
		t.Fatalf("second Close on already-closed fd must be a no-op, got %v", err)
	}
}

func TestFD_ReadWriteOnClosedReturnsErrClosed(t *testing.T) {
	efd, err := iofd.NewEventFD(0)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	if err := efd.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := efd.Signal(1); err != iofd.ErrClosed {
		t.Errorf("Signal on closed fd: got %v, want ErrClosed", err)
	}
	if _, err := efd.Wait(); err != iofd.ErrClosed {
		t.Errorf("Wait on closed fd: got %v, want ErrClosed", err)
	}
}
