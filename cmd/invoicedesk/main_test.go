package main

import (
	"testing"

	"github.com/invoicedesk/invoicedesk/internal/app"
	_ "github.com/invoicedesk/invoicedesk/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled by the guard package")
	}
	main()
}
