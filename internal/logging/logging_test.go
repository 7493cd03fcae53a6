package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoOnInvalidLevel(t *testing.T) {
	log := New("not-a-level", false)
	require.Equal(t, logrus.InfoLevel, log.Level)
	_, ok := log.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestNewHonorsJSONFormat(t *testing.T) {
	log := New("debug", true)
	require.Equal(t, logrus.DebugLevel, log.Level)
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	require.True(t, ok)
}

func TestSubsystemTagsSubsystemField(t *testing.T) {
	log := New("info", false)
	entry := Subsystem(log, "tick")
	require.Equal(t, "tick", entry.Data["subsystem"])
}
