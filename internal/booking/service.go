package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/diagnostic-booking/internal/beneficiary"
	"github.com/wolfman30/diagnostic-booking/internal/catalog"
	"github.com/wolfman30/diagnostic-booking/internal/orders"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/slots"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

var (
	ErrSlotNotAvailable = errors.New("booking: slot is not in the available list")
	ErrPackageRequired  = errors.New("booking: select a package before choosing a date")
)

// Notice levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a message for the visitor, shown as a toast.
type Notice struct {
	Level       string `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// FormPatch carries the form fields a PATCH may change. Nil fields are left alone.
type FormPatch struct {
	Pincode            *string                    `json:"pincode,omitempty"`
	Name               *string                    `json:"name,omitempty"`
	Mobile             *string                    `json:"mobile,omitempty"`
	Email              *string                    `json:"email,omitempty"`
	Age                *string                    `json:"age,omitempty"`
	Gender             *string                    `json:"gender,omitempty"`
	Address            *string                    `json:"address,omitempty"`
	Package            *string                    `json:"package,omitempty"`
	Quantity           *int                       `json:"quantity,omitempty"`
	SlotID             *string                    `json:"slotId,omitempty"`
	PrintedReports     *bool                      `json:"printedReports,omitempty"`
	ContactPreferences *orders.ContactPreferences `json:"contactPreferences,omitempty"`
	Authorized         *bool                      `json:"authorized,omitempty"`
}

// PincodeVerifier checks serviceability.
type PincodeVerifier interface {
	Verify(ctx context.Context, raw string) pincode.Result
}

// SlotFetcher looks up appointment windows.
type SlotFetcher interface {
	Fetch(ctx context.Context, req slots.Request) (slots.Result, error)
}

// Submitter places the order.
type Submitter interface {
	Submit(ctx context.Context, form orders.Form, pin pincode.State) orders.Result
}

// Service applies visitor actions to sessions.
type Service struct {
	store     Store
	pincodes  PincodeVerifier
	slots     SlotFetcher
	submitter Submitter
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(store Store, pincodes PincodeVerifier, fetcher SlotFetcher, submitter Submitter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Service{
		store:     store,
		pincodes:  pincodes,
		slots:     fetcher,
		submitter: submitter,
		logger:    logger.WithComponent("booking"),
		now:       time.Now,
	}
}

// Create starts a session for one person with a single empty beneficiary row.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	c, err := beneficiary.NewCollector(1, nil)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		Form:           orders.Form{Quantity: 1, Beneficiaries: c.List()},
		PincodeState:   pincode.StateUnknown,
		AvailableSlots: []slots.TimeSlot{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Update applies p. A new pincode resets serviceability; a new pincode,
// package or quantity invalidates the fetched slots; a quantity change resizes
// the beneficiary rows.
func (s *Service) Update(ctx context.Context, id string, p FormPatch) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f := &sess.Form
	staleSlots := false

	if p.Pincode != nil && strings.TrimSpace(*p.Pincode) != f.Pincode {
		f.Pincode = strings.TrimSpace(*p.Pincode)
		sess.PincodeState = pincode.StateUnknown
		staleSlots = true
	}
	setString(&f.Name, p.Name)
	setString(&f.Mobile, p.Mobile)
	setString(&f.Email, p.Email)
	setString(&f.Age, p.Age)
	setString(&f.Gender, p.Gender)
	setString(&f.Address, p.Address)
	if p.Package != nil && *p.Package != f.Package {
		f.Package = *p.Package
		staleSlots = true
	}
	if p.Quantity != nil && *p.Quantity != f.Quantity {
		if *p.Quantity < 1 {
			return nil, beneficiary.ErrInvalidQuantity
		}
		c, err := beneficiary.NewCollector(beneficiary.Rows(f.Quantity), f.Beneficiaries)
		if err != nil {
			return nil, err
		}
		if err := c.Resize(beneficiary.Rows(*p.Quantity)); err != nil {
			return nil, err
		}
		rows := c.List()
		if *p.Quantity == 1 {
			// nobody besides the primary; keep one empty row for the popup
			rows = []beneficiary.Beneficiary{{ID: rows[0].ID}}
		}
		f.Quantity = *p.Quantity
		f.Beneficiaries = rows
		staleSlots = true
	}
	if p.PrintedReports != nil {
		f.PrintedReports = *p.PrintedReports
	}
	if p.ContactPreferences != nil {
		f.ContactPreferences = *p.ContactPreferences
	}
	if p.Authorized != nil {
		f.Authorized = *p.Authorized
	}
	if staleSlots {
		clearSlots(sess)
	}
	if p.SlotID != nil {
		if err := selectSlot(sess, *p.SlotID); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// VerifyPincode sets the pincode and resolves its serviceability.
func (s *Service) VerifyPincode(ctx context.Context, id, raw string) (*Session, []Notice, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	res := s.pincodes.Verify(ctx, raw)
	if res.Pincode != sess.Form.Pincode {
		clearSlots(sess)
	}
	sess.Form.Pincode = res.Pincode
	sess.PincodeState = res.State

	var notices []Notice
	if res.Notice != "" {
		level := LevelWarning
		if res.State == pincode.StateInvalid {
			level = LevelError
		}
		notices = append(notices, Notice{Level: level, Title: "Pincode", Description: res.Notice})
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, notices, nil
}

func (s *Service) AddBeneficiary(ctx context.Context, id string, b beneficiary.Beneficiary) (*Session, beneficiary.Beneficiary, error) {
	sess, c, err := s.collector(ctx, id)
	if err != nil {
		return nil, beneficiary.Beneficiary{}, err
	}
	added, err := c.Add(b)
	if err != nil {
		return nil, beneficiary.Beneficiary{}, err
	}
	sess.Form.Beneficiaries = c.List()
	return sess, added, s.save(ctx, sess)
}

func (s *Service) EditBeneficiary(ctx context.Context, id, benID string, p beneficiary.Patch) (*Session, error) {
	sess, c, err := s.collector(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := c.Edit(benID, p); err != nil {
		return nil, err
	}
	sess.Form.Beneficiaries = c.List()
	return sess, s.save(ctx, sess)
}

// RemoveBeneficiary never removes the last row.
func (s *Service) RemoveBeneficiary(ctx context.Context, id, benID string) (*Session, error) {
	sess, c, err := s.collector(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(benID); err != nil {
		return nil, err
	}
	sess.Form.Beneficiaries = c.List()
	return sess, s.save(ctx, sess)
}

// SelectDate fetches slots for date and replaces the available list. The
// selected slot survives only if it is still offered.
func (s *Service) SelectDate(ctx context.Context, id, date string) (*Session, []Notice, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pkg, err := catalog.Parse(sess.Form.Package)
	if err != nil {
		return nil, nil, ErrPackageRequired
	}
	primary := sess.Form.Primary()
	res, err := s.slots.Fetch(ctx, slots.Request{
		Date:         date,
		Pincode:      sess.Form.Pincode,
		PincodeState: sess.PincodeState,
		ProductCode:  pkg.ProductCode,
		Quantity:     sess.Form.Quantity,
		Primary:      primary,
		Additional:   beneficiary.Additional(primary, sess.Form.Beneficiaries),
	})
	if err != nil {
		return nil, nil, err
	}

	sess.Form.AppointmentDate = res.Date
	sess.AvailableSlots = res.Slots
	sess.SlotsFallback = res.Fallback
	if !slotOffered(res.Slots, sess.Form.Slot) {
		sess.Form.Slot = ""
		sess.Form.SlotMasterID = ""
	}

	var notices []Notice
	if res.Notice != "" {
		notices = append(notices, Notice{Level: LevelInfo, Title: "Slots", Description: res.Notice})
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, notices, nil
}

// Submit runs the submitter over the session's form and keeps the result.
func (s *Service) Submit(ctx context.Context, id string) (*Session, orders.Result, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, orders.Result{}, err
	}
	res := s.submitter.Submit(ctx, sess.Form, sess.PincodeState)
	sess.LastResult = &res
	if err := s.save(ctx, sess); err != nil {
		s.logger.Warn("session save after submit failed", "session_id", id, "error", err)
	}
	return sess, res, nil
}

func (s *Service) collector(ctx context.Context, id string) (*Session, *beneficiary.Collector, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	c, err := beneficiary.NewCollector(beneficiary.Rows(sess.Form.Quantity), sess.Form.Beneficiaries)
	if err != nil {
		return nil, nil, err
	}
	return sess, c, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("booking: save session: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func clearSlots(sess *Session) {
	sess.AvailableSlots = []slots.TimeSlot{}
	sess.SlotsFallback = false
	sess.Form.Slot = ""
	sess.Form.SlotMasterID = ""
}

func selectSlot(sess *Session, slotID string) error {
	if slotID == "" {
		sess.Form.Slot = ""
		sess.Form.SlotMasterID = ""
		return nil
	}
	for _, ts := range sess.AvailableSlots {
		if ts.ID == slotID {
			sess.Form.Slot = ts.Slot
			sess.Form.SlotMasterID = ts.SlotMasterID
			return nil
		}
	}
	return ErrSlotNotAvailable
}

func slotOffered(list []slots.TimeSlot, label string) bool {
	for _, ts := range list {
		if ts.Slot == label {
			return true
		}
	}
	return false
}
