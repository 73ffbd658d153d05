package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"club-hours/config"
	"club-hours/internal/openinghours"
	"club-hours/pkg/jwt"
)

const testSecret = "hoursctl-test-secret-0123456789"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run 执行命令并返回 stdout、stderr 与错误；退出码错误不会结束测试进程
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"hoursctl"}, args...))
	return stdout.String(), stderr.String(), err
}

// config.Load 会校验 export.timezone（默认 Europe/Oslo）
func requireTZData(t *testing.T) {
	t.Helper()
	if _, err := time.LoadLocation("Europe/Oslo"); err != nil {
		t.Skipf("missing tzdata: %v", err)
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder cli.ExitCoder
	require.True(t, errors.As(err, &coder), "expected exit error, got %v", err)
	return coder.ExitCode()
}

func TestCheck(t *testing.T) {
	ok := writeFile(t, "ok.json", `[
		{"weekday":1,"weekCycle":"ODD","openTime":"14:00","closeTime":"16:00"},
		{"weekday":1,"weekCycle":"EVEN","openTime":"14:00","closeTime":"16:00"},
		{"weekday":1,"openTime":"16:00","closeTime":"18:00"}
	]`)
	out, _, err := run(t, "check", "--file", ok)
	require.NoError(t, err)
	require.Contains(t, out, "ok: 3 windows")

	bad := writeFile(t, "bad.json", `[
		{"weekday":2,"openTime":"14:00","closeTime":"16:00"},
		{"weekday":2,"weekCycle":"ODD","openTime":"15:00","closeTime":"17:00"}
	]`)
	out, _, err = run(t, "check", "-f", bad)
	require.Equal(t, 2, exitCode(t, err))
	require.Contains(t, out, "OVERLAP_CONFLICT")
	require.Contains(t, out, "14:00-16:00")
}

func TestCheck_BadFile(t *testing.T) {
	_, _, err := run(t, "check", "--file", writeFile(t, "broken.json", `{"weekday":1}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode windows")

	_, _, err = run(t, "check", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	existing := writeFile(t, "existing.json", `[{"weekday":3,"openTime":"14:00","closeTime":"16:00"}]`)

	out, _, err := run(t, "validate", "--file", existing, "--candidate",
		writeFile(t, "touch.json", `{"weekday":3,"openTime":"16:00","closeTime":"18:00"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, out)

	out, _, err = run(t, "validate", "--file", existing, "--candidate",
		writeFile(t, "inverted.json", `{"weekday":3,"openTime":"18:00","closeTime":"17:00"}`))
	require.Equal(t, 2, exitCode(t, err))
	require.Contains(t, out, "INVALID_RANGE")
}

func TestToken(t *testing.T) {
	requireTZData(t)
	t.Setenv("HOURS_AUTH_JWT_SECRET", testSecret)

	out, _, err := run(t, "token", "--user-id", "u-1", "--role", jwt.RoleClubAdmin,
		"--municipality-id", "m-1", "--club-id", "c-1")
	require.NoError(t, err)

	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: testSecret, Issuer: "club-admin", AccessTokenTTL: time.Minute})
	claims, err := mgr.ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, jwt.Identity{UserID: "u-1", Role: jwt.RoleClubAdmin, MunicipalityID: "m-1", ClubID: "c-1"}, claims.Identity())
	require.Equal(t, "access", claims.TokenType)
}

func TestToken_RequiresScope(t *testing.T) {
	requireTZData(t)
	t.Setenv("HOURS_AUTH_JWT_SECRET", testSecret)

	_, _, err := run(t, "token", "--user-id", "u-1", "--role", jwt.RoleMunicipalityAdmin)
	require.ErrorContains(t, err, "--municipality-id")

	_, _, err = run(t, "token", "--user-id", "u-1", "--role", "janitor")
	require.ErrorContains(t, err, "unknown role")
}

func TestImport(t *testing.T) {
	requireTZData(t)
	calendar := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"BEGIN:VEVENT",
		"UID:a",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Youth Club: Open gym",
		"DTSTART;TZID=Europe/Oslo:20240101T140000",
		"DTEND;TZID=Europe/Oslo:20240101T160000",
		"RRULE:FREQ=WEEKLY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Party",
		"DTSTART;TZID=Europe/Oslo:20240105T180000",
		"DTEND;TZID=Europe/Oslo:20240105T230000",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	out, errOut, err := run(t, "import", "--file", writeFile(t, "hours.ics", calendar), "--club-name", "Youth Club")
	require.NoError(t, err)
	require.Contains(t, errOut, `skipped "Party"`)

	var set openinghours.Set
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Len(t, set, 1)
	require.Equal(t, openinghours.Monday, set[0].Weekday)
	require.Equal(t, openinghours.CycleAll, set[0].WeekCycle)
	require.Equal(t, "14:00-16:00", set[0].RangeString())
	require.Equal(t, "Open gym", set[0].Title)
}

func TestImport_BadTimezone(t *testing.T) {
	_, _, err := run(t, "import", "--file", writeFile(t, "x.ics", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), "--timezone", "Mars/Olympus")
	require.ErrorContains(t, err, "invalid time zone")
}

func TestMigrateDown_RequiresConfirmation(t *testing.T) {
	_, _, err := run(t, "migrate", "down")
	require.ErrorContains(t, err, "--yes")
}
