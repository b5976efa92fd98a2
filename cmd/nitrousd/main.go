// Command nitrousd runs the headless Overlord/Minion daemon and exposes a
// thin administrative CLI surface for one-shot operations against its data
// store, with flag handling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip59"

	"github.com/pinpox/nitrousd/internal/config"
	"github.com/pinpox/nitrousd/internal/overlord"
	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/signer"
	"github.com/pinpox/nitrousd/internal/store"
)

func main() {
	configFlag := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fail("config error: %v", err)
	}

	if flag.NArg() > 0 {
		args := flag.Args()
		if err := runCLI(cfg, args[0], args[1:]); err != nil {
			fail("%v", err)
		}
		return
	}

	runDaemon(cfg)
}

// runDaemon starts the Overlord and blocks until SIGINT/SIGTERM, routing
// Ctrl-C into the runstate ShuttingDown transition.
func runDaemon(cfg config.Config) {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		fail("store error: %v", err)
	}
	defer st.Close()

	sk, err := signer.Load(cfg.PrivateKeyFile)
	if err != nil {
		fail("key error: %v", err)
	}

	o := overlord.New(overlord.Deps{Config: cfg, Store: st, Signer: sk})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	o.Run(ctx)
}

func runCLI(cfg config.Config, cmd string, args []string) error {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("store error: %w", err)
	}
	defer st.Close()

	switch cmd {
	case "login":
		s, err := signer.Load(cfg.PrivateKeyFile)
		if err != nil {
			return err
		}
		pk, _ := s.PublicKey()
		fmt.Printf("logged in as %s\n", pk)
		return nil

	case "offline":
		cfg.Offline = true
		fmt.Println("offline mode set for this run")
		return nil

	case "import_event":
		if len(args) != 1 {
			return fmt.Errorf("usage: import_event <json>")
		}
		var e nostr.Event
		if err := json.Unmarshal([]byte(args[0]), &e); err != nil {
			return fmt.Errorf("parse event: %w", err)
		}
		if store.IsReplaceable(e.Kind) {
			_, err = st.ReplaceEvent(&e)
		} else {
			_, err = st.WriteIfMissing(&e)
		}
		return err

	case "print_event":
		if len(args) != 1 {
			return fmt.Errorf("usage: print_event <id>")
		}
		e, err := st.GetEvent(args[0])
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil

	case "print_relays":
		rs, err := st.AllRelays()
		if err != nil {
			return err
		}
		for _, r := range rs {
			fmt.Printf("%-50s rank=%d success=%d failure=%d hidden=%v\n", r.URL, r.Rank, r.SuccessCount, r.FailureCount, r.Hidden)
		}
		return nil

	case "rebuild_indices":
		return rebuildIndices(st)

	case "rename_person_list":
		if len(args) != 2 {
			return fmt.Errorf("usage: rename_person_list <n> <name>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parse list number: %w", err)
		}
		kind, slot := listKindForCLISlot(n)
		return st.RenameList(kind, slot, args[1])

	case "delete_spam_by_content":
		if len(args) != 3 {
			return fmt.Errorf("usage: delete_spam_by_content <kind> <since> <substr>")
		}
		kind, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parse kind: %w", err)
		}
		since, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse since: %w", err)
		}
		return deleteSpamByContent(st, kind, nostr.Timestamp(since), args[2])

	case "verify":
		if len(args) != 1 {
			return fmt.Errorf("usage: verify <id>")
		}
		e, err := st.GetEvent(args[0])
		if err != nil {
			return err
		}
		ok, err := e.CheckSignature()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("event %s: signature does not verify", args[0])
		}
		fmt.Printf("event %s: signature OK\n", args[0])
		return nil

	case "ungiftwrap":
		if len(args) != 1 {
			return fmt.Errorf("usage: ungiftwrap <id>")
		}
		return ungiftwrap(cfg, st, args[0])

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// listKindForCLISlot mirrors overlord.listKindForSlot's numbering so the
// CLI and the running daemon agree on what "list 0/1/2/N" means.
func listKindForCLISlot(n int) (person.ListKind, int) {
	switch n {
	case 0:
		return person.Followed, 0
	case 1:
		return person.Muted, 0
	case 2:
		return person.Bookmarks, 0
	default:
		return person.Custom, n
	}
}

// rebuildIndices re-derives the relationship and by-author/by-tag indices
// for every stored event, the operation administrators run after a schema
// change or suspected index corruption.
func rebuildIndices(st *store.Store) error {
	events, err := st.AllEvents()
	if err != nil {
		return err
	}
	count := 0
	for _, e := range events {
		if store.IsReplaceable(e.Kind) {
			if _, err := st.ReplaceEvent(e); err != nil {
				return err
			}
		} else {
			if _, err := st.WriteIfMissing(e); err != nil {
				return err
			}
		}
		count++
	}
	fmt.Printf("rebuilt indices for %d events\n", count)
	return nil
}

// deleteSpamByContent removes every event of kind created at or after
// since whose content contains substr, a bulk moderation escape hatch.
func deleteSpamByContent(st *store.Store, kind int, since nostr.Timestamp, substr string) error {
	events, err := st.AllEvents()
	if err != nil {
		return err
	}
	deleted := 0
	for _, e := range events {
		if e.Kind != kind || e.CreatedAt < since {
			continue
		}
		if !strings.Contains(e.Content, substr) {
			continue
		}
		if err := st.DeleteEvent(e.ID); err != nil {
			return err
		}
		deleted++
	}
	fmt.Printf("deleted %d events\n", deleted)
	return nil
}

// ungiftwrap unwraps a stored kind-1059 gift wrap using the locally loaded
// key, printing the recovered rumor, the NIP-17/NIP-59 inverse of
// postbuilder's DM construction path.
func ungiftwrap(cfg config.Config, st *store.Store, id string) error {
	wrap, err := st.GetEvent(id)
	if err != nil {
		return err
	}
	s, err := signer.Load(cfg.PrivateKeyFile)
	if err != nil {
		return err
	}
	sk, err := s.SecretKey()
	if err != nil {
		return err
	}
	rumor, err := nip59.GiftUnwrap(*wrap, func(otherPubkey, ciphertext string) (string, error) {
		ss, err := nip04.ComputeSharedSecret(otherPubkey, sk)
		if err != nil {
			return "", err
		}
		return nip04.Decrypt(ciphertext, ss)
	})
	if err != nil {
		return fmt.Errorf("unwrap: %w", err)
	}
	raw, err := json.MarshalIndent(rumor, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
