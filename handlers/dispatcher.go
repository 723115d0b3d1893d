package handlers

import (
	"fmt"

	"chime-server/models"
	"chime-server/store"
)

// BotDispatcher is the delivery boundary for the scheduler: it posts reminder
// messages as Chimebot into the configured broadcast channel or a bot DM
// channel, persists them, and fans them out over the hub.
type BotDispatcher struct {
	store     *store.Store
	hub       *Hub
	channelID string
}

func NewBotDispatcher(s *store.Store, hub *Hub, channelID string) *BotDispatcher {
	return &BotDispatcher{store: s, hub: hub, channelID: channelID}
}

func (d *BotDispatcher) SendToChannel(text string) error {
	if _, err := d.store.GetChannel(d.channelID); err != nil {
		return fmt.Errorf("broadcast channel %s: %w", d.channelID, err)
	}
	return d.PostAsBot(d.channelID, text)
}

func (d *BotDispatcher) SendDirect(userID, text string) error {
	dm, err := d.store.GetOrCreateChimebotDM(userID)
	if err != nil {
		return fmt.Errorf("chimebot DM for user %s: %w", userID, err)
	}
	if err := d.PostAsBot(dm.ID, text); err != nil {
		return err
	}

	// Nudge the recipient directly as well, so clients can surface a
	// notification even when the DM channel is not in view.
	d.hub.SendToUser(userID, models.WSMessage{
		Type:    models.WSTypeReminder,
		Payload: map[string]string{"channel_id": dm.ID, "message": text},
	})
	return nil
}

func (d *BotDispatcher) ResolveUser(userID string) (string, error) {
	user, err := d.store.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	return user.Username, nil
}

// PostAsBot persists a Chimebot message in a channel and broadcasts it.
func (d *BotDispatcher) PostAsBot(channelID, text string) error {
	bot, err := d.store.GetChimebot()
	if err != nil {
		return fmt.Errorf("chimebot user: %w", err)
	}

	msg, err := d.store.CreateMessage(channelID, bot.ID, text)
	if err != nil {
		return err
	}

	d.hub.BroadcastToChannel(channelID, models.WSMessage{
		Type: models.WSTypeNewMessage,
		Payload: models.MessageWithUser{
			Message: *msg,
			User:    bot.ToResponse(),
		},
	})
	return nil
}
