package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type offlineTransport struct{}

func (offlineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("offline")
}

func TestServeClosesSessionWhenRegistrationFails(t *testing.T) {
	s, err := discordgo.New("Bot token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: offlineTransport{}}
	s.DataReady = true
	b := &Bot{session: s, appID: "app", log: zap.NewNop()}

	err = b.Serve(context.Background(), nil)

	assert.ErrorContains(t, err, "register commands")
	assert.False(t, s.DataReady)
}
