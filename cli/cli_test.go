package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/library/config"
	"github.com/kevinaaaquil/library/handlers"
	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "library", cmd.Use)

	for _, name := range []string{"serve", "seed", "return-all"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestFlags(t *testing.T) {
	cmd := NewRootCommand()

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	seedFlag := serve.Flags().Lookup("seed")
	require.NotNil(t, seedFlag)
	assert.Equal(t, "false", seedFlag.DefValue)

	returnAll, _, err := cmd.Find([]string{"return-all"})
	require.NoError(t, err)
	require.NotNil(t, returnAll.Flags().Lookup("timeout"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"seed", "--format", "xml"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LIBRARY_CLI_TEST_VAR=from-file\n"), 0o600))
	t.Setenv("LIBRARY_CLI_TEST_VAR", "")
	os.Unsetenv("LIBRARY_CLI_TEST_VAR")

	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "from-file", os.Getenv("LIBRARY_CLI_TEST_VAR"))

	missing := filepath.Join(dir, "missing.env")
	assert.NoError(t, loadEnvFile(missing, false))
	assert.Error(t, loadEnvFile(missing, true))
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "8080",
		JWTSecret:         "secret",
		CORSOrigins:       []string{"*"},
		MaxUploadMB:       5,
		LibrarianUsername: config.DefaultLibrarianUsername,
		MaxAssistants:     10,
		Policy:            lending.DefaultPolicy(),
		RetryAttempts:     3,
		RetryBaseDelay:    time.Millisecond,
		SMTPHost:          "smtp.example.com",
		SMTPPort:          587,
		SMTPUsername:      "desk",
		SMTPPassword:      "pw",
		SMTPSender:        "desk@example.com",
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	cfg.MailEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

	srv, err := newServer(cfg, &store.DB{}, nil)
	require.NoError(t, err)
	assert.Nil(t, srv.Books.Covers)
	assert.NotNil(t, srv.Books.Metadata)
	assert.NotNil(t, srv.MailSettings.Secrets)
	assert.Same(t, srv.Auth.Maintenance, srv.Admin.Maintenance)
	assert.Equal(t, cfg.Policy, srv.Lending.Engine.Policy())
	assert.Equal(t, "smtp.example.com", srv.Receipts.Fallback.Host)
	assert.True(t, srv.Receipts.Fallback.Complete())
	assert.NotNil(t, srv.Routes())

	cfg.MailEncryptionKey = []byte("short")
	_, err = newServer(cfg, &store.DB{}, nil)
	assert.Error(t, err)
}

func sampleResult() *lending.ReturnAllResult {
	return &lending.ReturnAllResult{
		ReturnDate: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Accounts:   2,
		Loans:      3,
		Fines:      4,
		Failures: []lending.AccountFailure{{
			AccountID: primitive.NewObjectID(),
			Username:  "as2",
			OpenLoans: 1,
			Err:       errors.New("boom"),
		}},
	}
}

func TestPrintReturnAllText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := &output{format: "text", w: &stdout, errW: &stderr}

	require.NoError(t, printReturnAll(out, sampleResult(), false))
	assert.Equal(t, "returned 3 loans from 2 accounts at 2024-06-01T12:00:00Z, fines 4\n", stdout.String())
	assert.Equal(t, "failed as2 (1 loans still open): boom\n", stderr.String())
}

func TestPrintReturnAllJSON(t *testing.T) {
	var stdout bytes.Buffer
	out := &output{format: "json", w: &stdout, errW: &bytes.Buffer{}}

	require.NoError(t, printReturnAll(out, sampleResult(), false))
	var got handlers.ReturnAllResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 3, got.Loans)
	assert.False(t, got.Complete)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "as2", got.Failures[0].Username)
}
