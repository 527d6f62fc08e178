package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func sampleSubmission(ref string, outcome Outcome, at time.Time) Submission {
	return Submission{
		ID:          "sub-" + ref,
		RefOrderID:  ref,
		Outcome:     outcome,
		Mobile:      "9876543210",
		Email:       "asha@example.com",
		PackageCode: "PROJ1052746",
		Quantity:    1,
		Rate:        1575,
		Payload:     json.RawMessage(`{"ref_order_id":"` + ref + `"}`),
		CreatedAt:   at,
	}
}

func TestMemorySubmissionRepository_ListFiltersAndOrders(t *testing.T) {
	repo := NewMemorySubmissionRepository()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i, o := range []Outcome{OutcomeConfirmed, OutcomeFallback, OutcomeFallback} {
		ref := NewRefOrderID(base.Add(time.Duration(i) * time.Minute))
		if err := repo.Save(ctx, sampleSubmission(ref, o, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := repo.List(ctx, SubmissionFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 submissions, got %d (%v)", len(all), err)
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Fatalf("expected newest first: %+v", all)
	}

	fallbacks, _ := repo.List(ctx, SubmissionFilter{Outcome: OutcomeFallback, Limit: 1})
	if len(fallbacks) != 1 || fallbacks[0].Outcome != OutcomeFallback {
		t.Fatalf("unexpected filtered list: %+v", fallbacks)
	}

	if _, err := repo.Get(ctx, "ORD0"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestParseOutcome(t *testing.T) {
	if o, err := ParseOutcome(" Fallback "); err != nil || o != OutcomeFallback {
		t.Fatalf("unexpected parse: %q %v", o, err)
	}
	if _, err := ParseOutcome("pending"); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}

func TestPostgresSubmissionRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresSubmissionRepositoryWithQuerier(mock)
	now := time.Now().UTC()
	sub := sampleSubmission("ORD1", OutcomeFallback, now)
	sub.Reason = "timeout"

	mock.ExpectExec("INSERT INTO order_submissions").
		WithArgs("sub-ORD1", "ORD1", "", "fallback", "timeout", "9876543210", "asha@example.com",
			"PROJ1052746", 1, 1575, []byte(sub.Payload), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Save(context.Background(), sub); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSubmissionRepository_SaveRequiresRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	if err := newPostgresSubmissionRepositoryWithQuerier(mock).Save(context.Background(), Submission{}); err == nil {
		t.Fatal("expected error for missing ref")
	}
}

func submissionRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "ref_order_id", "order_no", "outcome", "reason", "mobile", "email",
		"package_code", "quantity", "rate", "payload", "created_at",
	})
}

func TestPostgresSubmissionRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresSubmissionRepositoryWithQuerier(mock)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM order_submissions WHERE ref_order_id").
		WithArgs("ORD1").
		WillReturnRows(submissionRows().AddRow("sub-1", "ORD1", "VL1", "confirmed", "", "9876543210",
			"asha@example.com", "PROJ1052746", 1, 1575, []byte(`{}`), now))

	sub, err := repo.Get(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sub.Outcome != OutcomeConfirmed || sub.OrderNo != "VL1" || string(sub.Payload) != `{}` {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	mock.ExpectQuery("SELECT (.+) FROM order_submissions WHERE ref_order_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestPostgresSubmissionRepository_ListByOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresSubmissionRepositoryWithQuerier(mock)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM order_submissions\\s+WHERE outcome").
		WithArgs("fallback", 10).
		WillReturnRows(submissionRows().
			AddRow("sub-2", "ORD2", "", "fallback", "timeout", "9876543210", "", "PROJ1052742", 1, 999, []byte(`{}`), now).
			AddRow("sub-1", "ORD1", "", "fallback", "rejected", "9876543211", "", "PROJ1052742", 1, 999, []byte(`{}`), now.Add(-time.Minute)))

	list, err := repo.List(context.Background(), SubmissionFilter{Outcome: OutcomeFallback, Limit: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 2 || list[0].RefOrderID != "ORD2" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
