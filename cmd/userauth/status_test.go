// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/userauth/internal/control"
)

func startHealthServer(t *testing.T, serving bool) string {
	t.Helper()
	srv := control.NewHealthServer()
	_, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	srv.SetServing(serving)
	return srv.Addr()
}

func TestQueryHealth_Serving(t *testing.T) {
	addr := startHealthServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statuses := queryHealth(ctx, addr, []string{"", control.ServiceName})
	require.Len(t, statuses, 2)
	assert.Equal(t, ServiceStatus{Service: "server", Health: "serving"}, statuses[0])
	assert.Equal(t, ServiceStatus{Service: control.ServiceName, Health: "serving"}, statuses[1])
}

func TestQueryHealth_NotServing(t *testing.T) {
	addr := startHealthServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statuses := queryHealth(ctx, addr, []string{control.ServiceName})
	require.Len(t, statuses, 1)
	assert.Equal(t, "not_serving", statuses[0].Health)
}

func TestQueryHealth_UnknownService(t *testing.T) {
	addr := startHealthServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statuses := queryHealth(ctx, addr, []string{"nope.v1.Nope"})
	require.Len(t, statuses, 1)
	assert.Empty(t, statuses[0].Health)
	assert.NotEmpty(t, statuses[0].Error)
}

func TestStatusCommand_JSON(t *testing.T) {
	addr := startHealthServer(t, true)

	cmd := NewStatusCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--json", "--control-addr", addr})
	require.NoError(t, cmd.Execute())

	var statuses []ServiceStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "serving", statuses[1].Health)
}

func TestFormatStatusTable(t *testing.T) {
	table := formatStatusTable([]ServiceStatus{
		{Service: "server", Health: "serving"},
		{Service: control.ServiceName, Error: "connection refused"},
	})

	assert.Contains(t, table, "SERVICE")
	assert.Contains(t, table, "serving")
	assert.Contains(t, table, "unreachable: connection refused")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "server", displayName(""))
	assert.Equal(t, "x.v1.Y", displayName("x.v1.Y"))
}
