package main

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/cache"
	"clubadmin/internal/dashboard"
	"clubadmin/internal/model"
	"clubadmin/internal/stats"
)

type fakeAuth struct{ username, password string }

func (f *fakeAuth) Login(_ context.Context, username, password string) (apiclient.LoginResult, error) {
	f.username, f.password = username, password
	if password != "secret" {
		return apiclient.LoginResult{}, apiclient.ErrUnauthorized
	}
	return apiclient.LoginResult{Token: "up-token", User: model.User{Username: username, Role: "admin"}}, nil
}

func setup(t *testing.T, env map[string]string) (*commandLine, *bytes.Buffer) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer up-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Token expired"}`))
			return
		}
		switch r.URL.Path {
		case "/admin/students":
			_, _ = w.Write([]byte(`{"success":true,"data":{"students":[{"id":1,"full_name":"Aziz","externalCourses":[{"courseName":"IELTS"}]}],"pagination":{"total":1,"page":1,"limit":100,"pages":1}}}`))
		case "/admin/clubs":
			_, _ = w.Write([]byte(`{"success":true,"data":{"clubs":[{"_id":"c1","name":"Chess","capacity":10,"currentStudents":4}],"pagination":{"total":1,"page":1,"limit":100,"pages":1}}}`))
		case "/admin/attendance":
			_, _ = w.Write([]byte(`{"success":true,"data":{"attendance":[],"pagination":{"total":0,"page":1,"limit":100,"pages":0}}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := apiclient.New(srv.URL, 5*time.Second)
	out := &bytes.Buffer{}
	return &commandLine{
		out:    out,
		auth:   &fakeAuth{},
		svc:    dashboard.NewService(client, cache.New(cache.NewMemory(), cache.Options{}), dashboard.Options{Location: time.UTC}),
		loc:    time.UTC,
		now:    func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) },
		getenv: func(k string) string { return env[k] },
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runTests(t *testing.T, tests []cliTest, env map[string]string) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t, env)
			err := cli.run(append([]string{"clubsctl"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	runTests(t, []cliTest{
		{name: "no command", args: nil, wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "flag help", args: []string{"period", "-h"}, wantErr: errHelp},
	}, nil)
}

func Test_commandLine_period(t *testing.T) {
	runTests(t, []cliTest{
		{name: "default month", args: []string{"period"}, wantOut: "month\t2024-03-01\t2024-03-31\n"},
		{name: "week", args: []string{"period", "-name", "week"}, wantOut: "week\t2024-03-11\t2024-03-17\n"},
		{name: "all", args: []string{"period", "-name", "all"}, wantOut: "all\t-\t-\n"},
		{name: "custom open end", args: []string{"period", "-name", "custom", "-start", "2024-01-05"}, wantOut: "custom\t2024-01-05\t-\n"},
		{name: "unknown", args: []string{"period", "-name", "decade"}, wantErrStr: "unknown period"},
		{name: "bad date", args: []string{"period", "-name", "custom", "-end", "05/01/2024"}, wantErrStr: "YYYY-MM-DD"},
		{name: "reversed", args: []string{"period", "-name", "custom", "-start", "2024-02-01", "-end", "2024-01-01"}, wantErrStr: "after end"},
	}, nil)
}

func Test_commandLine_color(t *testing.T) {
	used := []string{stats.Palette[0], stats.Palette[1]}
	want := stats.AssignColor(used, rand.New(rand.NewPCG(7, 7)))

	var allButLast []string
	for _, c := range stats.Palette[:len(stats.Palette)-1] {
		allButLast = append(allButLast, strings.ToLower(c))
	}

	runTests(t, []cliTest{
		{name: "seeded", args: []string{"color", "-used", strings.Join(used, ","), "-seed", "7"}, wantOut: want + "\n"},
		{name: "last free color", args: []string{"color", "-used", strings.Join(allButLast, ", ")}, wantOut: stats.Palette[len(stats.Palette)-1] + "\n"},
		{name: "bad seed", args: []string{"color", "-seed", "x"}, wantErrStr: "invalid value"},
	}, nil)
}

func Test_commandLine_login(t *testing.T) {
	defer func(orig func(int) ([]byte, error)) { readPasswordFunc = orig }(readPasswordFunc)

	readPasswordFunc = func(int) ([]byte, error) { return []byte("secret"), nil }
	runTests(t, []cliTest{
		{name: "no username", args: []string{"login"}, wantErr: errHelp},
		{name: "ok", args: []string{"login", "-username", "admin"}, wantOut: "logged in as admin (admin)\nup-token\n"},
	}, nil)

	readPasswordFunc = func(int) ([]byte, error) { return nil, nil }
	runTests(t, []cliTest{{name: "empty password", args: []string{"login", "-username", "admin"}, wantErr: errHelp}}, nil)

	readPasswordFunc = func(int) ([]byte, error) { return []byte("nope"), nil }
	runTests(t, []cliTest{{name: "rejected", args: []string{"login", "-username", "admin"}, wantErr: apiclient.ErrUnauthorized}}, nil)

	readPasswordFunc = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	runTests(t, []cliTest{{name: "no tty", args: []string{"login", "-username", "admin"}, wantErrStr: "not a terminal"}}, nil)
}

func Test_commandLine_report(t *testing.T) {
	runTests(t, []cliTest{
		{name: "no token", args: []string{"report"}, wantErrStr: "CLUBADMIN_TOKEN"},
	}, nil)
	runTests(t, []cliTest{
		{name: "expired token", args: []string{"report"}, wantErr: apiclient.ErrUnauthorized},
	}, map[string]string{"CLUBADMIN_TOKEN": "old"})
	runTests(t, []cliTest{
		{name: "month", args: []string{"report", "-period", "month"}, wantOut: "busy 1 (100.0%)"},
		{name: "bad period", args: []string{"report", "-period", "decade"}, wantErrStr: "invalid request"},
	}, map[string]string{"CLUBADMIN_TOKEN": "up-token"})
}
