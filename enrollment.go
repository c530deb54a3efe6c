package goGuardian

import "sync/atomic"

// Enrollment is a confirmed device registration. It is immutable.
type Enrollment struct {
	availableMethods []Method
	methods          []Method
	name             string
	phoneNumber      string
}

// SerializedEnrollment is the persisted form of an [Enrollment].
type SerializedEnrollment struct {
	AvailableMethods []Method `json:"available_methods"`
	Methods          []Method `json:"methods,omitempty"`
	Name             string   `json:"name,omitempty"`
	PhoneNumber      string   `json:"phone_number,omitempty"`
}

// NewEnrollment builds an enrollment from its serialized form.
func NewEnrollment(s SerializedEnrollment) *Enrollment {
	return &Enrollment{
		availableMethods: cloneMethods(s.AvailableMethods),
		methods:          cloneMethods(s.Methods),
		name:             s.Name,
		phoneNumber:      s.PhoneNumber,
	}
}

// AvailableMethods returns the methods this enrollment can authenticate with.
func (e *Enrollment) AvailableMethods() []Method { return cloneMethods(e.availableMethods) }

// Methods returns the methods registered for the device.
func (e *Enrollment) Methods() []Method { return cloneMethods(e.methods) }

// Name returns the device name.
func (e *Enrollment) Name() string { return e.name }

// PhoneNumber returns the masked phone number for sms enrollments.
func (e *Enrollment) PhoneNumber() string { return e.phoneNumber }

// Serialize returns the persisted form.
func (e *Enrollment) Serialize() SerializedEnrollment {
	return SerializedEnrollment{
		AvailableMethods: cloneMethods(e.availableMethods),
		Methods:          cloneMethods(e.methods),
		Name:             e.name,
		PhoneNumber:      e.phoneNumber,
	}
}

// deviceAccount is the service's representation of an enrolled or enrolling device.
type deviceAccount struct {
	ID               string   `json:"id,omitempty"`
	Status           string   `json:"status,omitempty"`
	AvailableMethods []Method `json:"available_methods,omitempty"`
	Methods          []Method `json:"methods,omitempty"`
	Name             string   `json:"name,omitempty"`
	PhoneNumber      string   `json:"phone_number,omitempty"`
	OTPSecret        string   `json:"otp_secret,omitempty"`
	RecoveryCode     string   `json:"recovery_code,omitempty"`
}

func (d deviceAccount) enrollment() *Enrollment {
	return NewEnrollment(SerializedEnrollment{
		AvailableMethods: d.AvailableMethods,
		Methods:          d.Methods,
		Name:             d.Name,
		PhoneNumber:      d.PhoneNumber,
	})
}

// Issuer names the tenant shown in authenticator apps.
type Issuer struct {
	Name  string `json:"name" env:"NAME"`
	Label string `json:"label" env:"LABEL"`
}

// EnrollmentAttemptData holds what is needed to finish an enrollment.
type EnrollmentAttemptData struct {
	EnrollmentTxID string `json:"enrollment_tx_id"`
	OTPSecret      string `json:"otp_secret,omitempty"`
	Issuer         Issuer `json:"issuer"`
	RecoveryCode   string `json:"recovery_code,omitempty"`
	EnrollmentID   string `json:"enrollment_id,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
	AccountLabel   string `json:"account_label,omitempty"`
}

// EnrollmentAttempt is an enrollment that has not been confirmed yet.
//
// It is active only while one enrollment confirmation is outstanding.
type EnrollmentAttempt struct {
	data   EnrollmentAttemptData
	active atomic.Bool
}

// NewEnrollmentAttempt returns an inactive attempt.
func NewEnrollmentAttempt(data EnrollmentAttemptData) *EnrollmentAttempt {
	return &EnrollmentAttempt{data: data}
}

// Data returns the attempt data.
func (a *EnrollmentAttempt) Data() EnrollmentAttemptData { return a.data }

// IsActive reports whether a confirmation is outstanding.
func (a *EnrollmentAttempt) IsActive() bool { return a.active.Load() }

// EnrollmentTxID returns the enrollment transaction id.
func (a *EnrollmentAttempt) EnrollmentTxID() string { return a.data.EnrollmentTxID }

// OTPSecret returns the authenticator secret.
func (a *EnrollmentAttempt) OTPSecret() string { return a.data.OTPSecret }

// RecoveryCode returns the recovery code issued with the enrollment.
func (a *EnrollmentAttempt) RecoveryCode() string { return a.data.RecoveryCode }

// EnrollmentID returns the device account id.
func (a *EnrollmentAttempt) EnrollmentID() string { return a.data.EnrollmentID }

// Issuer returns the tenant issuer.
func (a *EnrollmentAttempt) Issuer() Issuer { return a.data.Issuer }

// BaseURL returns the service URL embedded in enrollment URIs.
func (a *EnrollmentAttempt) BaseURL() string { return a.data.BaseURL }

// AccountLabel returns the account label shown in authenticator apps.
func (a *EnrollmentAttempt) AccountLabel() string { return a.data.AccountLabel }

func (a *EnrollmentAttempt) setActive(v bool) { a.active.Store(v) }
