package catalog

import (
	"fmt"
	"strings"
)

// PlaybackToolName is the tool the instructions tell the model to call.
const PlaybackToolName = "music_playback_tool"

const instructions = `You are a music playback agent. These are the tracks you can play:
%s

Your role:
- When the user asks for a theme or a mood (for example "something natural" or "lofi"),
  choose the tracks from the list above that fit it and present them as a playlist.
- When the user agrees to the playlist (for example "OK"), play the chosen tracks in order.
  - Play each track with %s, passing the track's filename and the start and end positions.
  - Leave a short pause between tracks with sleep_time_ms.
  - Play one track per tool call unless the user asks otherwise.
- Keep playing until the user says "stop" or "quit". When every track in the playlist has
  been played, stop.
- If a tool reports an error, tell the user and continue with the next track.

Available tools:
- %s: plays the given range of a track's WAV file, then waits before returning.`

// SystemPrompt renders the agent instructions with the full track list
// embedded as JSON.
func (c *Catalog) SystemPrompt() (string, error) {
	data, err := c.JSON()
	if err != nil {
		return "", fmt.Errorf("render catalog: %w", err)
	}
	return strings.TrimSpace(fmt.Sprintf(instructions, data, PlaybackToolName, PlaybackToolName)), nil
}
