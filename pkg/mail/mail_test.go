package mail

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscied/orchestra/pkg/types"
)

func TestNewParsesServer(t *testing.T) {
	m := New("smtp.example.com:587", true, "noreply@example.com", "u", "p")
	assert.Equal(t, "smtp.example.com", m.host)
	assert.Equal(t, 587, m.port)

	m = New("smtp.example.com", false, "noreply@example.com", "", "")
	assert.Equal(t, "smtp.example.com", m.host)
	assert.Equal(t, 25, m.port)
}

func TestNilMailerSendsNothing(t *testing.T) {
	var m *Mailer
	user := &types.User{FirstName: "Ada", LastName: "Lovelace", Mail: "ada@example.com"}
	assert.NoError(t, m.NotifyTask(user, "transformation", types.NewID(), types.TaskSuccess, ""))
}

func TestNotifyTaskSkipsMaillessUser(t *testing.T) {
	m := New("smtp.example.com", false, "noreply@example.com", "", "")
	assert.NoError(t, m.NotifyTask(&types.User{FirstName: "Ada"}, "transformation", "t1", types.TaskSuccess, ""))
	assert.NoError(t, m.NotifyTask(nil, "transformation", "t1", types.TaskSuccess, ""))
}

func TestBodyTemplate(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, bodyTemplate.Execute(&body, map[string]any{
		"Name":    "Ada Lovelace",
		"Kind":    "transformation",
		"TaskID":  "t1",
		"Status":  "FAILURE",
		"Details": "encoder exited 1",
	}))
	out := body.String()
	assert.Contains(t, out, "Hello Ada Lovelace")
	assert.Contains(t, out, "transformation task t1")
	assert.Contains(t, out, "FAILURE")
	assert.Contains(t, out, "encoder exited 1")
}
