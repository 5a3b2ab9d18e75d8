// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package iofd_test

import (
	"testing"

	"code.hybscloud.com/excimer/iofd"
	"code.hybscloud.com/iox"
)

func TestEventFD_CreateWithInitval(t *testing.T) {
	efd, err := iofd.NewEventFD(42)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	defer efd.Close()

	val, err := efd.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if val != 42 {
		t.Errorf("expected initial value 42, got %d", val)
	}
}

func TestEventFD_SignalAndWait(t *testing.T) {
	efd, err := iofd.NewEventFD(0)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	defer efd.Close()

	if err := efd.Signal(5); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}
	if err := efd.Signal(3); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	val, err := efd.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if val != 8 {
		t.Errorf("expected accumulated value 8, got %d", val)
	}

	if _, err := efd.Wait(); err != iox.ErrWouldBlock {
		t.Errorf("expected ErrWouldBlock after drain, got %v", err)
	}
}

func TestEventFD_Semaphore(t *testing.T) {
	efd, err := iofd.NewEventFDSemaphore(3)
	if err != nil {
		t.Fatalf("NewEventFDSemaphore failed: %v", err)
	}
	defer efd.Close()

	for i := 0; i < 3; i++ {
		val, err := efd.Wait()
		if err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		if val != 1 {
			t.Errorf("semaphore Wait %d: expected 1, got %d", i, val)
		}
	}

	if _, err := efd.Wait(); err != iox.ErrWouldBlock {
		t.Errorf("expected ErrWouldBlock after semaphore exhausted, got %v", err)
	}
}

func TestEventFD_CloseThenSignalFails(t *testing.T) {
	efd, err := iofd.NewEventFD(0)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	if err := efd.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := efd.Signal(1); err == nil {
		t.Error("Signal on closed eventfd should fail")
	}
}

// This is the exact usage pattern internal/dispatch relies on for the
// optional host-wakeup path: enqueue signals, drain waits.
func TestEventFD_WakeupPattern(t *testing.T) {
	efd, err := iofd.NewEventFD(0)
	if err != nil {
		t.Fatalf("NewEventFD failed: %v", err)
	}
	defer efd.Close()

	for i := 0; i < 4; i++ {
		if err := efd.Signal(1); err != nil {
			t.Fatalf("Signal %d failed: %v", i, err)
		}
	}
	val, err := efd.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if val != 4 {
		t.Errorf("expected coalesced value 4, got %d", val)
	}
}
