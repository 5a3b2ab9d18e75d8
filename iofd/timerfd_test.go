// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package iofd_test

import (
	"testing"
	"time"

	"code.hybscloud.com/excimer/iofd"
	"code.hybscloud.com/iox"
)

func TestTimerFD_ArmAndRead(t *testing.T) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		t.Fatalf("NewTimerFD failed: %v", err)
	}
	defer tfd.Close()

	if err := tfd.Arm(10*int64(time.Millisecond), 0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	count, err := tfd.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expiration, got %d", count)
	}
}

func TestTimerFD_PeriodicTimer(t *testing.T) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		t.Fatalf("NewTimerFD failed: %v", err)
	}
	defer tfd.Close()

	interval := 5 * int64(time.Millisecond)
	if err := tfd.Arm(interval, interval); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	count, err := tfd.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if count < 3 {
		t.Errorf("expected at least 3 expirations, got %d", count)
	}
}

func TestTimerFD_Disarm(t *testing.T) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		t.Fatalf("NewTimerFD failed: %v", err)
	}
	defer tfd.Close()

	if err := tfd.Arm(100*int64(time.Millisecond), 0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := tfd.Disarm(); err != nil {
		t.Fatalf("Disarm failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	if _, err := tfd.Read(); err != iox.ErrWouldBlock {
		t.Errorf("expected ErrWouldBlock after disarm, got %v", err)
	}
}

// ostimer's dedicated handler goroutine relies on SetBlocking: once
// blocking, Read must park until expiry rather than returning
// ErrWouldBlock immediately.
func TestTimerFD_SetBlockingParksUntilExpiry(t *testing.T) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		t.Fatalf("NewTimerFD failed: %v", err)
	}
	defer tfd.Close()

	if err := tfd.SetBlocking(true); err != nil {
		t.Fatalf("SetBlocking failed: %v", err)
	}
	if err := tfd.Arm(10*int64(time.Millisecond), 0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	start := time.Now()
	count, err := tfd.Read()
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("blocking Read failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expiration, got %d", count)
	}
	if elapsed < 5*time.Millisecond {
		t.Errorf("Read returned suspiciously early after %s", elapsed)
	}
}

func TestTimerFD_CloseThenArmFails(t *testing.T) {
	tfd, err := iofd.NewTimerFD()
	if err != nil {
		t.Fatalf("NewTimerFD failed: %v", err)
	}
	if err := tfd.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := tfd.Arm(int64(time.Second), 0); err == nil {
		t.Error("Arm on closed timerfd should fail")
	}
}
