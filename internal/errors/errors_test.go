package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestCredentialErrors(t *testing.T) {
	dec := &ErrDecryption{}
	if !strings.Contains(dec.Error(), "decryption failed") {
		t.Fatalf("unexpected decryption message: %s", dec.Error())
	}
	decReason := &ErrDecryption{Reason: "authentication tag mismatch"}
	if !strings.Contains(decReason.Error(), "authentication tag mismatch") {
		t.Fatalf("expected reason in message: %s", decReason.Error())
	}

	user := &ErrUserNotFound{UserID: "u_123"}
	if !strings.Contains(user.Error(), "u_123") {
		t.Fatalf("expected user id in message: %s", user.Error())
	}

	mp := &ErrInvalidMarketplace{Marketplace: "etsy"}
	if !strings.Contains(mp.Error(), "invalid marketplace") || !strings.Contains(mp.Error(), "etsy") {
		t.Fatalf("unexpected marketplace message: %s", mp.Error())
	}
}

func TestAutomationErrors(t *testing.T) {
	base := errors.New("exec: chrome not found")

	launch := &ErrBrowserLaunch{Err: base}
	if !strings.Contains(launch.Error(), "failed to launch browser") {
		t.Fatalf("unexpected launch message: %s", launch.Error())
	}
	if !errors.Is(launch, base) {
		t.Fatalf("expected unwrap to base error")
	}

	nav := &ErrNavigationTimeout{URL: "https://poshmark.com/login", Err: base}
	if !strings.Contains(nav.Error(), "poshmark.com") {
		t.Fatalf("expected URL in message: %s", nav.Error())
	}

	form := &ErrFormNotFound{Marketplace: "depop"}
	if !strings.Contains(form.Error(), "login form not found") {
		t.Fatalf("unexpected form message: %s", form.Error())
	}

	submit := &ErrSubmitControlMissing{Marketplace: "bonanza"}
	if !strings.Contains(submit.Error(), "submit button not found") {
		t.Fatalf("unexpected submit message: %s", submit.Error())
	}
}
