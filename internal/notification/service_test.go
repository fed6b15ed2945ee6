package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/servio/backend/internal/apperr"
	"github.com/servio/backend/internal/storage/models"
	"github.com/servio/backend/internal/storage/storagetest"
)

type capture struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (c *capture) PublishNotification(n *models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, *n)
}

func TestCreatePublishesToOwner(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewDB(t)
	acct := storagetest.CreateAccount(t, db, "Owner", models.RoleUser)
	pub := &capture{}
	svc := NewService(db, pub, zerolog.Nop())

	n, err := svc.CreateReminder(ctx, acct.ID, "Reminder text")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.IsRead || n.Title != TitleReminder || n.Category != models.CategoryReminder {
		t.Fatalf("notification = %+v", n)
	}
	if len(pub.sent) != 1 || pub.sent[0].ID != n.ID || pub.sent[0].AccountID != acct.ID {
		t.Fatalf("published = %+v", pub.sent)
	}

	if _, err := svc.CreatePaymentNotice(ctx, acct.ID, "$20"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	appt, err := svc.CreateAppointmentNotice(ctx, acct.ID, "Oil change on Mar 1")
	if err != nil {
		t.Fatalf("appointment: %v", err)
	}
	if appt.Message != "Your appointment has been confirmed: Oil change on Mar 1" {
		t.Fatalf("message = %q", appt.Message)
	}
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewDB(t)
	pub := &capture{}
	svc := NewService(db, pub, zerolog.Nop())

	_, err := svc.Create(ctx, CreateRequest{AccountID: 77, Title: "t", Message: "m", Category: "payment"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown account: %v", err)
	}
	_, err = svc.Create(ctx, CreateRequest{AccountID: 1, Title: "t", Message: "m", Category: "PROMOTIONAL"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad category: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("failed creates published %d notifications", len(pub.sent))
	}
}

func TestReadStateAndPruning(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewDB(t)
	acct := storagetest.CreateAccount(t, db, "Reader", models.RoleUser)
	svc := NewService(db, &capture{}, zerolog.Nop())

	var ids []int64
	for i := 0; i < 3; i++ {
		n, err := svc.CreateAppointmentNotice(ctx, acct.ID, "details")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, n.ID)
	}

	read, err := svc.MarkRead(ctx, ids[1])
	if err != nil || !read.IsRead {
		t.Fatalf("mark read = %+v, %v", read, err)
	}
	unread, err := svc.ListUnread(ctx, acct.ID)
	if err != nil || len(unread) != 2 {
		t.Fatalf("unread = %v, %v", unread, err)
	}
	if count, _ := svc.CountUnread(ctx, acct.ID); count != 2 {
		t.Fatalf("count = %d", count)
	}
	if changed, _ := svc.MarkAllRead(ctx, acct.ID); changed != 2 {
		t.Fatalf("mark all = %d", changed)
	}

	svc.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	removed, err := svc.DeleteOlderThan(ctx, acct.ID, 0)
	if err != nil || removed != 3 {
		t.Fatalf("prune = %d, %v", removed, err)
	}
	list, err := svc.ListByOwner(ctx, acct.ID)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("list after prune = %v, %v", list, err)
	}

	if _, err := svc.Get(ctx, ids[0]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get pruned: %v", err)
	}
	if err := svc.Delete(ctx, ids[0]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("delete pruned: %v", err)
	}
	if _, err := svc.MarkRead(ctx, ids[0]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("mark pruned: %v", err)
	}
}

func TestDeleteOlderThanKeepsRecent(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewDB(t)
	acct := storagetest.CreateAccount(t, db, "Keeper", models.RoleUser)
	svc := NewService(db, &capture{}, zerolog.Nop())

	if _, err := svc.CreateReminder(ctx, acct.ID, "fresh"); err != nil {
		t.Fatalf("create: %v", err)
	}
	removed, err := svc.DeleteOlderThan(ctx, acct.ID, 7)
	if err != nil || removed != 0 {
		t.Fatalf("prune = %d, %v", removed, err)
	}
}
