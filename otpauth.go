package goGuardian

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	otpAlgorithm = "sha1"
	otpDigits    = 6
	otpPeriod    = 30
)

// EnrollmentURIData is what an authenticator app needs to register the device.
type EnrollmentURIData struct {
	IssuerName     string
	IssuerLabel    string
	AccountLabel   string
	OTPSecret      string
	EnrollmentTxID string
	EnrollmentID   string
	BaseURL        string
	Algorithm      string
	Digits         int
	Counter        int
	Period         int
}

func enrollmentURIData(a *EnrollmentAttempt) EnrollmentURIData {
	if a == nil {
		return EnrollmentURIData{}
	}
	d := a.Data()
	return EnrollmentURIData{
		IssuerName:     d.Issuer.Name,
		IssuerLabel:    d.Issuer.Label,
		AccountLabel:   d.AccountLabel,
		OTPSecret:      d.OTPSecret,
		EnrollmentTxID: d.EnrollmentTxID,
		EnrollmentID:   d.EnrollmentID,
		BaseURL:        d.BaseURL,
		Algorithm:      otpAlgorithm,
		Digits:         otpDigits,
		Counter:        0,
		Period:         otpPeriod,
	}
}

func otpLabel(d EnrollmentURIData) string {
	label := d.IssuerLabel
	if label == "" {
		label = d.IssuerName
	}
	if d.AccountLabel != "" {
		label += ":" + d.AccountLabel
	}
	return url.PathEscape(label)
}

// authenticatorURI is the standard key URI understood by any TOTP app.
func authenticatorURI(d EnrollmentURIData) string {
	v := url.Values{}
	v.Set("secret", d.OTPSecret)
	v.Set("issuer", d.IssuerName)
	v.Set("algorithm", strings.ToUpper(d.Algorithm))
	v.Set("digits", strconv.Itoa(d.Digits))
	v.Set("period", strconv.Itoa(d.Period))

	return "otpauth://totp/" + otpLabel(d) + "?" + v.Encode()
}

// guardianAppURI additionally carries the enrollment coordinates used by the push app.
func guardianAppURI(d EnrollmentURIData) string {
	v := url.Values{}
	v.Set("secret", d.OTPSecret)
	v.Set("enrollment_tx_id", d.EnrollmentTxID)
	v.Set("issuer", d.IssuerName)
	v.Set("id", d.EnrollmentID)
	v.Set("base_url", d.BaseURL)
	v.Set("algorithm", d.Algorithm)
	v.Set("digits", strconv.Itoa(d.Digits))
	v.Set("counter", strconv.Itoa(d.Counter))
	v.Set("period", strconv.Itoa(d.Period))

	return "otpauth://totp/" + otpLabel(d) + "?" + v.Encode()
}
