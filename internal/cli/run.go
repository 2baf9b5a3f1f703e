package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/peermeet/peermeet/internal/call"
	"github.com/peermeet/peermeet/internal/config"
	"github.com/peermeet/peermeet/internal/media"
	"github.com/peermeet/peermeet/internal/negotiation"
	"github.com/peermeet/peermeet/internal/rtc"
	"github.com/peermeet/peermeet/internal/ui"
)

const negotiateTimeout = 30 * time.Second

// callState holds everything tied to the current remote participant. A
// room never carries more than one, so the active peer's media session
// and link are tracked directly.
type callState struct {
	mu    sync.Mutex
	links map[string]*rtc.Peer
	media *media.Session
}

func (cs *callState) storeLink(peerID string, peer *rtc.Peer) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.links == nil {
		cs.links = make(map[string]*rtc.Peer)
	}
	cs.links[peerID] = peer
}

func (cs *callState) takeLink(peerID string) *rtc.Peer {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	peer := cs.links[peerID]
	delete(cs.links, peerID)
	return peer
}

func (cs *callState) set(ms *media.Session) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.media = ms
}

func (cs *callState) session() *media.Session {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.media
}

func (cs *callState) clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.media != nil {
		cs.media.Close()
	}
	cs.media = nil
}

// runCall connects to the signaling server, enters the room, and drives
// the interactive command loop until the user quits or the room closes.
func runCall(cfg *config.Config, roomID string) error {
	log := slog.Default()

	client := call.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Domain, err)
	}

	capture := &media.FileCapture{
		VideoPath:  flagVideo,
		AudioPath:  flagAudio,
		ScreenPath: flagScreen,
	}

	state := &callState{}

	factory := func(peerID string) (negotiation.PeerLink, error) {
		peer, err := rtc.New(cfg, log)
		if err != nil {
			return nil, err
		}
		peer.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
			ui.PrintInfo(fmt.Sprintf("Receiving remote %s track (%s)", track.Kind(), track.Codec().MimeType))
			go drainTrack(track)
		})
		peer.OnConnectionStateChange(func(st pion.PeerConnectionState) {
			switch st {
			case pion.PeerConnectionStateConnected:
				ui.PrintSuccess("Media path established")
			case pion.PeerConnectionStateDisconnected, pion.PeerConnectionStateFailed:
				ui.PrintStatus("Media path " + st.String())
			}
		})
		state.storeLink(peerID, peer)
		return peer, nil
	}

	membership := call.NewMembership(client, factory, log)

	membership.OnSession = func(peerID string, sess *negotiation.Session) {
		link := state.takeLink(peerID)
		if link == nil {
			return
		}

		ms := media.NewSession(capture, link, log)
		state.set(ms)

		link.OnNegotiationNeeded(func() {
			ctx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
			defer cancel()
			if err := sess.Renegotiate(ctx); err != nil {
				log.Warn("renegotiation failed", "peer", peerID, "error", err)
			}
		})

		if err := ms.Start(context.Background()); err != nil {
			ui.PrintError("local media unavailable: " + err.Error())
		}
	}

	membership.OnPeerLeft = func(peerID string) {
		state.clear()
		ui.PrintStatus("Peer left the room")
	}

	joinCtx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
	defer cancel()

	members, err := membership.Join(joinCtx, roomID, flagEmail)
	if err != nil {
		client.Close()
		return err
	}
	defer membership.Leave()

	ui.PrintSuccess("Joined room as " + membership.SelfID())

	// The newcomer initiates toward everyone already present.
	for _, peerID := range members {
		callCtx, cancelCall := context.WithTimeout(context.Background(), negotiateTimeout)
		err := membership.Call(callCtx, peerID)
		cancelCall()
		if err != nil {
			ui.PrintError("call failed: " + err.Error())
		}
	}
	if len(members) == 0 {
		ui.PrintStatus("Waiting for the other participant...")
	}

	return commandLoop(membership, state)
}

// commandLoop reads user commands from stdin until quit or EOF.
func commandLoop(membership *call.Membership, state *callState) error {
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		if cmd == "quit" || cmd == "q" {
			ui.PrintStatus("Leaving the room")
			return nil
		}
		runCommand(cmd, fields[1:], membership, state)
	}
	return scanner.Err()
}

func runCommand(cmd string, args []string, membership *call.Membership, state *callState) {
	ms := state.session()

	switch cmd {
	case "mute", "unmute":
		if ms == nil {
			ui.PrintError("no active call")
			return
		}
		kind := media.KindAudio
		if len(args) > 0 && args[0] == "video" {
			kind = media.KindVideo
		}
		if cmd == "mute" {
			ms.Mute(kind)
			ui.PrintStatus(fmt.Sprintf("%s muted", kind))
		} else {
			ms.Unmute(kind)
			ui.PrintStatus(fmt.Sprintf("%s unmuted", kind))
		}

	case "share":
		if ms == nil {
			ui.PrintError("no active call")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
		defer cancel()
		if err := ms.StartScreenShare(ctx); err != nil {
			ui.PrintError("screen share: " + err.Error())
			return
		}
		ui.PrintSuccess("Screen sharing started")

	case "stopshare":
		if ms == nil {
			ui.PrintError("no active call")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
		defer cancel()
		if err := ms.StopScreenShare(ctx); err != nil {
			ui.PrintError("stop screen share: " + err.Error())
			return
		}
		ui.PrintSuccess("Back to camera")

	case "record":
		if ms == nil {
			ui.PrintError("no active call")
			return
		}
		if err := startRecording(ms); err != nil {
			ui.PrintError("recording: " + err.Error())
		}

	case "stoprecord":
		if ms == nil {
			ui.PrintError("no active call")
			return
		}
		if err := ms.StopRecording(); err != nil {
			ui.PrintError("stop recording: " + err.Error())
			return
		}
		ui.PrintSuccess("Recording saved")

	case "peers":
		peers := membership.Peers()
		if len(peers) == 0 {
			ui.PrintStatus("No one else is here")
			return
		}
		for _, p := range peers {
			ui.PrintInfo("peer " + p)
		}

	case "help", "?":
		printHelp()

	default:
		ui.PrintError("unknown command: " + cmd)
	}
}

func startRecording(ms *media.Session) error {
	stamp := time.Now().Format("20060102-150405")
	videoPath := filepath.Join(flagRecDir, "recording-"+stamp+".ivf")
	audioPath := filepath.Join(flagRecDir, "recording-"+stamp+".opus")

	video, err := os.Create(videoPath)
	if err != nil {
		return err
	}
	audio, err := os.Create(audioPath)
	if err != nil {
		video.Close()
		os.Remove(videoPath)
		return err
	}

	if err := ms.StartRecording(video, audio); err != nil {
		video.Close()
		audio.Close()
		os.Remove(videoPath)
		os.Remove(audioPath)
		return err
	}
	ui.PrintSuccess("Recording to " + videoPath)
	return nil
}

// drainTrack keeps the remote track's RTP stream flowing. A headless
// client has no renderer, so packets are read and dropped.
func drainTrack(track *pion.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func printHelp() {
	ui.PrintInfo("Commands: mute [audio|video], unmute [audio|video], share, stopshare, record, stoprecord, peers, quit")
}
