//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	ProviderName = "dogwalk-api"
	ConsumerName = "walk-app"

	StateNoWalks       = "no walks exist"
	StateRequestedWalk = "a requested walk exists"
	StateNoPayment     = "owner has no payment method"
)

// Placeholder bearer tokens recorded in the pact. The provider swaps them for real tokens.
const (
	OwnerToken  = "pact-owner-token"
	WalkerToken = "pact-walker-token"

	OwnerID  = "pact-owner"
	WalkerID = "pact-walker"

	MissingWalkID = "missing-walk"
)

// PactDir is where consumer tests write and provider tests read the contract.
func PactDir(t testing.TB) string { return ensureDir(t, "pacts") }

// PactFile is the walk-app/dogwalk-api contract.
func PactFile(t testing.TB) string {
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir collects pact-go mock server logs.
func LogDir(t testing.TB) string { return ensureDir(t, "bin", "pact-logs") }

func ensureDir(t testing.TB, parts ...string) string {
	t.Helper()
	dir := filepath.Join(append([]string{projectRoot(t)}, parts...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	return dir
}

// ExampleWalkRequest provides stable request data for pact interactions.
func ExampleWalkRequest() map[string]any {
	return map[string]any{
		"petNames":  []string{"Fido", "Rex"},
		"latitude":  19.4326,
		"longitude": -99.1332,
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
