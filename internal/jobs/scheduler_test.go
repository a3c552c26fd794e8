package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingNotifier) NotifyAdmins(subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func TestScheduleRevocationRuns(t *testing.T) {
	done := make(chan Grant, 1)
	s := NewScheduler(RevokerFunc(func(ctx context.Context, g Grant) error {
		done <- g
		return nil
	}), nil, nil)

	grant := s.ScheduleRevocation(Grant{UserID: 42, Permission: "edit_all"}, 10*time.Millisecond)
	if grant.ID == "" {
		t.Fatalf("grant id not assigned")
	}

	select {
	case got := <-done:
		if got.UserID != 42 || got.ID != grant.ID {
			t.Fatalf("unexpected grant %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("revocation never ran")
	}
}

func TestFailedRevocationNotifiesAdmins(t *testing.T) {
	notifier := &recordingNotifier{}
	ran := make(chan struct{}, 1)
	s := NewScheduler(RevokerFunc(func(ctx context.Context, g Grant) error {
		ran <- struct{}{}
		return errors.New("user store unavailable")
	}), notifier, nil)

	s.ScheduleRevocation(Grant{UserID: 7, Permission: "edit_all"}, 10*time.Millisecond)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("revocation never ran")
	}
	deadline := time.Now().Add(time.Second)
	for notifier.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("admins never notified")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
