package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		in   string
		want DeviceType
	}{
		{"Computer", DeviceTypeComputer},
		{"desktop", DeviceTypeComputer},
		{"LAPTOP", DeviceTypeComputer},
		{"pc", DeviceTypeComputer},
		{"Mobile", DeviceTypeMobile},
		{"tablet", DeviceTypeTablet},
		{" TV ", DeviceTypeTV},
		{"fridge", DeviceTypeUnknown},
		{"", DeviceTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDeviceType(tt.in))
		})
	}
}

func TestInferDeviceType(t *testing.T) {
	assert.Equal(t, DeviceTypeMobile, InferDeviceType("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"))
	assert.Equal(t, DeviceTypeMobile, InferDeviceType("Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36"))
	assert.Equal(t, DeviceTypeTablet, InferDeviceType("Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)"))
	assert.Equal(t, DeviceTypeTablet, InferDeviceType("Mozilla/5.0 (Linux; Android 13; SM-X700) Safari/537.36"))
	assert.Equal(t, DeviceTypeTV, InferDeviceType("Mozilla/5.0 (SMART-TV; Linux; Tizen 6.0)"))
	assert.Equal(t, DeviceTypeComputer, InferDeviceType("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120"))
	assert.Equal(t, DeviceTypeUnknown, InferDeviceType("curl/8.4.0"))
	assert.Equal(t, DeviceTypeUnknown, InferDeviceType(""))
}

func TestResolveDeviceType(t *testing.T) {
	assert.Equal(t, DeviceTypeTV, ResolveDeviceType("tv", "Mozilla/5.0 (Windows NT 10.0)"))
	assert.Equal(t, DeviceTypeComputer, ResolveDeviceType("", "Mozilla/5.0 (Windows NT 10.0)"))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(100, 0))
	assert.Equal(t, 0.0, Percentage(100, -5))
	assert.InDelta(t, 50.0, Percentage(1800, 3600), 0.0001)
	assert.InDelta(t, 95.0, Percentage(3420, 3600), 0.0001)
}

func TestSession_Deactivate(t *testing.T) {
	s := &Session{IsActive: true, LoginTime: time.Now()}
	first := time.Now()
	s.Deactivate(first)
	assert.False(t, s.IsActive)
	assert.Equal(t, first, *s.LogoutTime)

	s.Deactivate(first.Add(time.Hour))
	assert.Equal(t, first, *s.LogoutTime)
}

func TestSession_LastSeen(t *testing.T) {
	login := time.Now().Add(-time.Hour)
	s := &Session{LoginTime: login}
	assert.Equal(t, login, s.LastSeen())

	act := time.Now()
	s.LastActivity = &act
	assert.Equal(t, act, s.LastSeen())
}
