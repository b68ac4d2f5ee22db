package app

import (
	"fmt"
	"sync"

	"rosterbot/internal/announce"
	"rosterbot/internal/config"
)

// channelSet is the runtime list of scheduled announcement channels. Admin
// commands mutate it in memory; a config reload resets it to the file's
// contents. onChange reschedules the announcer after every mutation.
type channelSet struct {
	mu       sync.Mutex
	channels []announce.Channel
	onChange func([]announce.Channel)
}

func newChannelSet(cfgs []config.ChannelConfig) *channelSet {
	s := &channelSet{}
	s.channels = fromConfig(cfgs)
	return s
}

func fromConfig(cfgs []config.ChannelConfig) []announce.Channel {
	out := make([]announce.Channel, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, announce.Channel{ID: c.ChannelID, Message: c.Message})
	}
	return out
}

func (s *channelSet) Channels() []announce.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]announce.Channel(nil), s.channels...)
}

func (s *channelSet) AddChannel(id int64) error {
	s.mu.Lock()
	for _, ch := range s.channels {
		if ch.ID == id {
			s.mu.Unlock()
			return fmt.Errorf("channel %d is already scheduled", id)
		}
	}
	s.channels = append(s.channels, announce.Channel{ID: id})
	snap := append([]announce.Channel(nil), s.channels...)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *channelSet) RemoveChannel(id int64) error {
	s.mu.Lock()
	idx := -1
	for i, ch := range s.channels {
		if ch.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("channel %d is not scheduled", id)
	}
	s.channels = append(s.channels[:idx], s.channels[idx+1:]...)
	snap := append([]announce.Channel(nil), s.channels...)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *channelSet) SetMessage(id int64, message string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.channels {
		if s.channels[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("channel %d is not scheduled", id)
	}
	s.channels[idx].Message = message
	snap := append([]announce.Channel(nil), s.channels...)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Reset replaces the runtime list with the config file's channels. The
// reload loop reschedules the announcer itself, so no onChange here.
func (s *channelSet) Reset(cfgs []config.ChannelConfig) {
	s.mu.Lock()
	s.channels = fromConfig(cfgs)
	s.mu.Unlock()
}

func (s *channelSet) notify(snap []announce.Channel) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
