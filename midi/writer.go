package midi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/blazeiburgess/WaoN/logging"
	"github.com/blazeiburgess/WaoN/notes"
)

// ErrOutput marks failures while building or writing a MIDI file.
var ErrOutput = errors.New("waon: output error")

const (
	// Tempo of the written file; with Division ticks per beat one tick is one hop.
	Tempo = 120.0
	// maxDivision is the largest metric tick resolution a header can carry.
	maxDivision = 0x7FFF
	noProgram   = -1
)

// WriterConfig controls the layout of the written Standard MIDI File.
type WriterConfig struct {
	Division int   `json:"division"` // ticks per quarter note
	Program  int   `json:"program"`  // General MIDI patch, -1 for none
	Channel  uint8 `json:"channel"`
}

type event struct {
	tick     int
	off      bool
	key      uint8
	velocity uint8
}

// Build lays notes out as a single-track format 0 file. Note start and end
// frames are used as ticks.
func Build(ns []notes.Note, config WriterConfig) (*smf.SMF, error) {
	if config.Division < 1 || config.Division > maxDivision {
		return nil, fmt.Errorf("%w: division %d out of range [1, %d]", ErrOutput, config.Division, maxDivision)
	}
	if config.Channel > 15 {
		return nil, fmt.Errorf("%w: channel %d out of range", ErrOutput, config.Channel)
	}

	events := make([]event, 0, 2*len(ns))
	for _, n := range ns {
		if n.Key < 0 || n.Key > MaxKey || n.Open() {
			return nil, fmt.Errorf("%w: note %+v cannot be written", ErrOutput, n)
		}
		vel := uint8(min(max(n.Velocity, 1), 127))
		events = append(events,
			event{tick: n.Start, key: uint8(n.Key), velocity: vel},
			event{tick: n.End, off: true, key: uint8(n.Key)},
		)
	}
	// offs first so a re-struck key is released before it sounds again
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("WaoN"))
	track.Add(0, smf.MetaTempo(Tempo))
	if config.Program != noProgram {
		if config.Program < 0 || config.Program > 127 {
			return nil, fmt.Errorf("%w: program %d out of range", ErrOutput, config.Program)
		}
		track.Add(0, gomidi.ProgramChange(config.Channel, uint8(config.Program)))
	}

	last := 0
	for _, ev := range events {
		delta := uint32(ev.tick - last)
		last = ev.tick
		if ev.off {
			track.Add(delta, gomidi.NoteOff(config.Channel, ev.key))
		} else {
			track.Add(delta, gomidi.NoteOn(config.Channel, ev.key, ev.velocity))
		}
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(config.Division)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return s, nil
}

// Write encodes notes as a Standard MIDI File to w.
func Write(w io.Writer, ns []notes.Note, config WriterConfig) error {
	s, err := Build(ns, config)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return nil
}

// WriteFile writes notes to path, replacing any existing file.
func WriteFile(path string, ns []notes.Note, config WriterConfig) error {
	logger := logging.WithFields(logging.Fields{
		"component": "midi_writer",
		"function":  "WriteFile",
		"path":      path,
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err := Write(f, ns, config); err != nil {
		f.Close()
		logger.Error(err, "Failed to write MIDI file")
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}

	logger.Debug("MIDI file written", logging.Fields{
		"notes":    len(ns),
		"division": config.Division,
	})
	return nil
}
