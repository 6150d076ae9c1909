// Package telegram exposes the playback engine as bot commands. It parses
// input and renders replies; every decision belongs to the engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"tunepilot/internal/lyrics"
	"tunepilot/internal/music/engine"
	"tunepilot/internal/music/queue"
	"tunepilot/internal/version"
)

type Frontend struct {
	log    *zap.Logger
	engine *engine.Engine
	lyrics *lyrics.Client // nil when Genius is not configured
	bot    *bot.Bot
}

func New(token string, eng *engine.Engine, lyr *lyrics.Client, log *zap.Logger) (*Frontend, error) {
	f := &Frontend{
		log:    log,
		engine: eng,
		lyrics: lyr,
	}

	b, err := bot.New(token, bot.WithDefaultHandler(f.handleDefault))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	f.bot = b

	commands := map[string]bot.HandlerFunc{
		"/start":   f.handleHelp,
		"/help":    f.handleHelp,
		"/play":    f.handlePlay,
		"/pause":   f.handlePause,
		"/resume":  f.handleResume,
		"/skip":    f.handleSkip,
		"/stop":    f.handleStop,
		"/volume":  f.handleVolume,
		"/repeat":  f.handleRepeat,
		"/queue":   f.handleQueue,
		"/history": f.handleHistory,
		"/shuffle": f.handleShuffle,
		"/clear":   f.handleClear,
		"/remove":  f.handleRemove,
		"/move":    f.handleMove,
		"/lyrics":  f.handleLyrics,
		"/stats":   f.handleStats,
	}
	for cmd, h := range commands {
		b.RegisterHandler(bot.HandlerTypeMessageText, cmd, bot.MatchTypePrefix, h)
	}

	return f, nil
}

// Run blocks polling for updates until ctx is cancelled.
func (f *Frontend) Run(ctx context.Context) {
	f.log.Info("telegram frontend started")
	f.bot.Start(ctx)
}

func (f *Frontend) reply(ctx context.Context, chatID int64, text string) {
	_, err := f.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		f.log.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// args splits a command message into its arguments, dropping the command.
func args(msg *models.Message) []string {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

// requesterID identifies who issued a command. Channel posts carry no sender;
// those attribute to 0.
func requesterID(msg *models.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

func (f *Frontend) handleDefault(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || !strings.HasPrefix(update.Message.Text, "/") {
		return
	}
	f.reply(ctx, update.Message.Chat.ID, "Unknown command. Try /help.")
}

func (f *Frontend) handleHelp(ctx context.Context, _ *bot.Bot, update *models.Update) {
	f.reply(ctx, update.Message.Chat.ID, version.AppName+" — "+version.AppDescription+`

/play <query or URL> — play or queue a track
/pause /resume /skip /stop — playback control
/volume <0-200> — set volume
/repeat <off|one|all> — repeat mode
/queue [page] — show the queue
/history — recently played
/shuffle /clear — reorder or empty the queue
/remove <pos> — drop one queued track
/move <from> <to> — reorder the queue
/lyrics <query> — find lyrics
/stats — bot statistics`)
}

func (f *Frontend) handlePlay(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	a := args(msg)
	if len(a) == 0 {
		f.reply(ctx, chatID, "Usage: /play <song title or URL>")
		return
	}
	query := strings.Join(a, " ")

	track, queued, err := f.engine.PlayQuery(ctx, chatID, query, requesterID(msg))
	if err != nil {
		f.replyError(ctx, chatID, err)
		return
	}

	if queued {
		f.reply(ctx, chatID, fmt.Sprintf("🎶 Queued: %s", formatTrack(track.Title, track.Artist)))
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("▶️ Now playing: %s", formatTrack(track.Title, track.Artist)))
}

func (f *Frontend) handlePause(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	ok, err := f.engine.Pause(ctx, chatID)
	switch {
	case err != nil:
		f.replyError(ctx, chatID, err)
	case !ok:
		f.reply(ctx, chatID, "Nothing to pause.")
	default:
		f.reply(ctx, chatID, "⏸ Paused.")
	}
}

func (f *Frontend) handleResume(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	ok, err := f.engine.Resume(ctx, chatID)
	switch {
	case err != nil:
		f.replyError(ctx, chatID, err)
	case !ok:
		f.reply(ctx, chatID, "Nothing to resume.")
	default:
		f.reply(ctx, chatID, "▶️ Resumed.")
	}
}

func (f *Frontend) handleSkip(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	track, err := f.engine.Skip(ctx, chatID)
	if err != nil {
		f.replyError(ctx, chatID, err)
		return
	}
	if track == nil {
		f.reply(ctx, chatID, "⏹ Queue is empty, playback stopped.")
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("⏭ Now playing: %s", formatTrack(track.Title, track.Artist)))
}

func (f *Frontend) handleStop(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	ok, err := f.engine.Stop(ctx, chatID)
	switch {
	case err != nil:
		f.replyError(ctx, chatID, err)
	case !ok:
		f.reply(ctx, chatID, "Nothing is playing.")
	default:
		f.reply(ctx, chatID, "⏹ Stopped and left the voice chat.")
	}
}

func (f *Frontend) handleVolume(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	a := args(msg)
	if len(a) != 1 {
		f.reply(ctx, chatID, "Usage: /volume <0-200>")
		return
	}

	vol, err := strconv.Atoi(a[0])
	if err != nil {
		f.reply(ctx, chatID, "Volume must be a number between 0 and 200.")
		return
	}

	if err := f.engine.SetVolume(ctx, chatID, vol); err != nil {
		f.replyError(ctx, chatID, err)
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("🔊 Volume set to %d%%.", vol))
}

func (f *Frontend) handleRepeat(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	a := args(msg)
	if len(a) != 1 {
		f.reply(ctx, chatID, "Usage: /repeat <off|one|all>")
		return
	}

	if err := f.engine.SetRepeatMode(chatID, engine.RepeatMode(a[0])); err != nil {
		f.replyError(ctx, chatID, err)
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("🔁 Repeat mode: %s.", a[0]))
}

func (f *Frontend) handleQueue(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	page := 1
	if a := args(msg); len(a) > 0 {
		if p, err := strconv.Atoi(a[0]); err == nil {
			page = p
		}
	}

	q := f.engine.GetQueue(chatID, page, 10)
	if q.Total == 0 {
		f.reply(ctx, chatID, "The queue is empty.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 Queue — %d track(s), page %d/%d\n", q.Total, q.Page, q.Pages)
	offset := (q.Page - 1) * q.PerPage
	for i, entry := range q.Items {
		fmt.Fprintf(&sb, "%d. %s\n", offset+i+1, formatEntry(entry))
	}
	f.reply(ctx, chatID, sb.String())
}

func (f *Frontend) handleHistory(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	entries := f.engine.GetHistory(chatID, 10)
	if len(entries) == 0 {
		f.reply(ctx, chatID, "Nothing played yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🕘 Recently played\n")
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, formatEntry(entry))
	}
	f.reply(ctx, chatID, sb.String())
}

func (f *Frontend) handleShuffle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if !f.engine.ShuffleQueue(chatID) {
		f.reply(ctx, chatID, "Not enough tracks to shuffle.")
		return
	}
	f.reply(ctx, chatID, "🔀 Queue shuffled.")
}

func (f *Frontend) handleClear(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if !f.engine.ClearQueue(chatID) {
		f.reply(ctx, chatID, "The queue is already empty.")
		return
	}
	f.reply(ctx, chatID, "🗑 Queue cleared.")
}

func (f *Frontend) handleRemove(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	a := args(msg)
	if len(a) != 1 {
		f.reply(ctx, chatID, "Usage: /remove <position>")
		return
	}

	pos, err := strconv.Atoi(a[0])
	if err != nil || pos < 1 {
		f.reply(ctx, chatID, "Position must be a positive number (see /queue).")
		return
	}

	entry := f.engine.RemoveAt(chatID, pos-1)
	if entry == nil {
		f.reply(ctx, chatID, "No track at that position.")
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("Removed: %s", formatEntry(*entry)))
}

func (f *Frontend) handleMove(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	a := args(msg)
	if len(a) != 2 {
		f.reply(ctx, chatID, "Usage: /move <from> <to>")
		return
	}

	from, err1 := strconv.Atoi(a[0])
	to, err2 := strconv.Atoi(a[1])
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		f.reply(ctx, chatID, "Positions must be positive numbers (see /queue).")
		return
	}

	if !f.engine.MoveTrack(chatID, from-1, to-1) {
		f.reply(ctx, chatID, "Invalid positions.")
		return
	}
	f.reply(ctx, chatID, fmt.Sprintf("Moved track %d to position %d.", from, to))
}

func (f *Frontend) handleLyrics(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	if f.lyrics == nil {
		f.reply(ctx, chatID, "Lyrics search is not configured.")
		return
	}

	query := strings.Join(args(msg), " ")
	if query == "" {
		// Default to whatever is playing right now.
		if c, ok := f.engine.Context(chatID); ok && c.Current != nil {
			query = strings.TrimSpace(c.Current.Title + " " + c.Current.Artist)
		}
	}
	if query == "" {
		f.reply(ctx, chatID, "Usage: /lyrics <song title>")
		return
	}

	result, err := f.lyrics.Search(ctx, query)
	if err != nil {
		if errors.Is(err, lyrics.ErrNotFound) {
			f.reply(ctx, chatID, "No lyrics found for that one.")
			return
		}
		f.log.Warn("lyrics search failed", zap.String("query", query), zap.Error(err))
		f.reply(ctx, chatID, "Lyrics lookup failed, try again later.")
		return
	}

	f.reply(ctx, chatID, fmt.Sprintf("🎤 %s\n%s", formatTrack(result.Title, result.Artist), result.URL))
}

func (f *Frontend) handleStats(ctx context.Context, _ *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	s := f.engine.Stats()

	f.reply(ctx, chatID, fmt.Sprintf(
		"📊 %s stats\nUptime: %s\nTotal plays: %d\nListeners: %d\nActive chats: %d\nQueued tracks: %d",
		version.AppName,
		s.Uptime.Round(time.Second),
		s.TotalPlays,
		s.TotalUsers,
		s.ActiveChats,
		s.Queued,
	))
}

// replyError maps engine errors onto user-facing messages.
func (f *Frontend) replyError(ctx context.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		f.reply(ctx, chatID, "The queue is full, try again after a few tracks play out.")
	case errors.Is(err, engine.ErrInvalidVolume):
		f.reply(ctx, chatID, "Volume must be between 0 and 200.")
	case errors.Is(err, engine.ErrInvalidRepeat):
		f.reply(ctx, chatID, "Repeat mode must be off, one or all.")
	case errors.Is(err, engine.ErrStreamResolution):
		f.reply(ctx, chatID, "Couldn't find a playable stream for that.")
	case errors.Is(err, engine.ErrVoiceUnavailable):
		f.reply(ctx, chatID, "Voice chat is unavailable right now.")
	default:
		f.log.Error("command failed", zap.Int64("chat_id", chatID), zap.Error(err))
		f.reply(ctx, chatID, "Something went wrong, try again.")
	}
}

func formatTrack(title, artist string) string {
	if artist == "" {
		return title
	}
	return title + " — " + artist
}

func formatEntry(entry queue.Entry) string {
	return formatTrack(entry.Track.Title, entry.Track.Artist)
}
