package tuner

import (
	"strconv"
	"strings"
)

// DisplayTuning formats the channel and lock strings for display. An atsc3
// channel spec carrying a PLP list (e.g. "atsc3:605000000:0+1") is shown
// without the list, and the lock display shows the PLPs instead.
func DisplayTuning(channel, lock string) (channelDisplay, lockDisplay string) {
	channelDisplay, lockDisplay = channel, lock
	if !strings.HasPrefix(channel, "atsc3:") {
		return
	}
	rest := channel[len("atsc3:"):]
	second := strings.Index(rest, ":")
	if second < 0 {
		return
	}
	channelDisplay = channel[:len("atsc3:")+second]
	lockDisplay = "atsc3:" + rest[second+1:]
	return
}

// RFValue extracts the numeric component of a channel spec: the digits after
// the first colon, or the leading digits of the whole spec when there is no
// colon. The value is a raw frequency in Hz or a broadcast channel number,
// depending on how the tuner was addressed. Returns 0 when the component
// does not lead with a digit.
func RFValue(spec string) uint32 {
	if i := strings.Index(spec, ":"); i >= 0 {
		spec = spec[i+1:]
	}
	end := 0
	for end < len(spec) && spec[end] >= '0' && spec[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseUint(spec[:end], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// RFChannelFromFrequency maps a frequency in Hz to its US broadcast RF
// channel number. Any frequency within a channel's 6 MHz span maps to that
// channel, so both center and edge conventions work.
func RFChannelFromFrequency(hz uint32) (uint32, bool) {
	switch {
	case hz >= 54000000 && hz < 72000000:
		return 2 + (hz-54000000)/6000000, true
	case hz >= 76000000 && hz < 88000000:
		return 5 + (hz-76000000)/6000000, true
	case hz >= 174000000 && hz < 216000000:
		return 7 + (hz-174000000)/6000000, true
	case hz >= 470000000 && hz < 698000000:
		return 14 + (hz-470000000)/6000000, true
	}
	return 0, false
}

// RFChannel returns the broadcast channel number for a channel spec,
// converting a spec addressed by raw frequency to its channel number. Specs
// already addressed by channel number pass through unchanged.
func RFChannel(spec string) uint32 {
	v := RFValue(spec)
	if ch, ok := RFChannelFromFrequency(v); ok {
		return ch
	}
	return v
}

// ParseChannelSpec splits a channel spec of the form
// "modulation:value[:plps]" into a Channel. The numeric component may be a
// raw frequency in Hz or a broadcast channel number; the frequency is only
// recorded when the spec carries one.
func ParseChannelSpec(spec string) Channel {
	var ch Channel
	mod, rest, found := strings.Cut(spec, ":")
	if !found {
		ch.Modulation = spec
		return ch
	}
	ch.Modulation = mod
	_, plps, _ := strings.Cut(rest, ":")
	ch.PLPs = plps
	v := RFValue(spec)
	if rf, ok := RFChannelFromFrequency(v); ok {
		ch.Frequency = float64(v)
		ch.RF = int(rf)
	} else {
		ch.RF = int(v)
	}
	return ch
}
