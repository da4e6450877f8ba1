package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// A built-in note string.
type song struct {
	name  string
	tempo int
	notes string
}

// Offsets are semitones from A4 (440 Hz); length 3 is a quarter note, 2 a half note.
var songs = []song{
	{name: "scale", tempo: 90, notes: "31323334"},
	{name: "octaves", tempo: 120, notes: "2-C202C1_"},
	{name: "twinkle", tempo: 100, notes: "3030373739392735353434323220"},
	{name: "ode", tempo: 110, notes: "343435373735343230303234344222"},
}

func songByName(name string) (song, bool) {
	for _, s := range songs {
		if strings.EqualFold(s.name, name) {
			return s, true
		}
	}
	return song{}, false
}

// listSongs prints the built-in songs as a table.
func listSongs(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTEMPO\tNOTES")
	for _, s := range songs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.name, s.tempo, s.notes)
	}
	tw.Flush()
}
