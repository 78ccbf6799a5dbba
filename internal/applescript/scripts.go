package applescript

import "strings"

// Escape makes s safe for embedding inside a double-quoted AppleScript
// string literal.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// tellMusic wraps body lines in a tell block addressing the Music app.
func tellMusic(lines ...string) string {
	var b strings.Builder
	b.WriteString("tell application \"Music\"\n")
	for _, line := range lines {
		b.WriteString("\t")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("end tell")
	return b.String()
}

// OpenLocation starts playback of a catalog URL.
func OpenLocation(url string) string {
	return tellMusic(`open location "` + Escape(url) + `"`)
}

// Play resumes playback.
func Play() string { return tellMusic("play") }

// Pause pauses playback.
func Pause() string { return tellMusic("pause") }

// NextTrack skips forward.
func NextTrack() string { return tellMusic("next track") }

// PreviousTrack skips backward.
func PreviousTrack() string { return tellMusic("previous track") }

// Stop stops playback entirely.
func Stop() string { return tellMusic("stop") }

// SetShuffle enables or disables shuffling.
func SetShuffle(enabled bool) string {
	if enabled {
		return tellMusic("set shuffle enabled to true")
	}
	return tellMusic("set shuffle enabled to false")
}

// SetShuffleMode sets the shuffle grouping: "off" disables shuffling,
// "songs" and "albums" enable it with the matching grouping.
func SetShuffleMode(mode string) string {
	if mode == "off" {
		return SetShuffle(false)
	}
	return tellMusic(
		"set shuffle enabled to true",
		"set shuffle mode to "+mode,
	)
}

// SetRepeatMode sets the loop behavior: "off", "one", or "all".
func SetRepeatMode(mode string) string {
	return tellMusic("set song repeat to " + mode)
}

// PlayerState reports the player state (playing, paused, stopped).
func PlayerState() string {
	return tellMusic("get player state as text")
}

// CurrentTrack reports the current track as "name | artist | album", or an
// empty result when nothing is loaded.
func CurrentTrack() string {
	return tellMusic(
		"if player state is stopped then return \"\"",
		`return (get name of current track) & " | " & (get artist of current track) & " | " & (get album of current track)`,
	)
}

// AddCurrentTrackToLibrary copies whatever is currently loaded into the
// local library.
func AddCurrentTrackToLibrary() string {
	return tellMusic(`duplicate current track to source "Library"`)
}

// CreatePlaylist makes an empty user playlist.
func CreatePlaylist(name, description string) string {
	props := `{name:"` + Escape(name) + `"`
	if description != "" {
		props += `, description:"` + Escape(description) + `"`
	}
	props += "}"
	return tellMusic("make new user playlist with properties " + props)
}

// AddTrackToPlaylist copies the first library track with the given name
// into the named playlist.
func AddTrackToPlaylist(playlist, trackName string) string {
	return tellMusic(
		`duplicate (first track of source "Library" whose name is "` + Escape(trackName) + `") to user playlist "` + Escape(playlist) + `"`,
	)
}
