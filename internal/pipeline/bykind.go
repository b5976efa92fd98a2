package pipeline

import (
	"encoding/json"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/blossom"
	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/store"
)

// feedDisplayableKinds are kinds the feed renders directly; deleted events
// of these kinds stay in the store (marked deleted) so the UI can still
// show a "deleted" placeholder, per the by-kind handler table.
var feedDisplayableKinds = map[int]bool{
	1: true, 1111: true, 6: true, 16: true,
}

func isFeedDisplayable(kind int) bool { return feedDisplayableKinds[kind] }

// dispatchByKind runs the per-kind handler table. Handlers return nothing:
// a failure inside one is dropped there and never aborts the other per-kind
// effects.
func (p *Pipeline) dispatchByKind(e *nostr.Event) {
	switch e.Kind {
	case 0:
		p.handleMetadata(e)
	case 3:
		p.handleContactList(e)
	case 10000, 30000:
		p.handleMetadataOnlyList(e)
	case 10002:
		p.handleRelayList(e)
	case 10050:
		p.handleDmRelayList(e)
	case 6, 16:
		p.handleRepost(e)
	case 24133:
		p.handleNostrConnect(e)
	case 10063:
		p.handleUserServerList(e)
	case 31989:
		p.handleHandlerRecommendation(e)
	case 31990:
		p.handleHandlerInformation(e)
	case 1059:
		p.handleGiftwrap(e)
	case 5:
		p.handleDeletion(e)
	}
}

func (p *Pipeline) handleMetadata(e *nostr.Event) {
	pr, err := p.store.GetPerson(e.PubKey)
	if err != nil {
		return
	}
	if !pr.MetadataAt.IsZero() && pr.MetadataAt.Unix() >= int64(e.CreatedAt) {
		return
	}
	pr.Metadata = e.Content
	pr.MetadataAt = time.Unix(int64(e.CreatedAt), 0)

	var md struct {
		NIP05 string `json:"nip05"`
	}
	if json.Unmarshal([]byte(e.Content), &md) == nil && md.NIP05 != "" {
		if md.NIP05 != pr.Nip05 || time.Since(pr.Nip05LastChecked) > 24*time.Hour {
			pr.Nip05 = md.NIP05
			pr.Nip05Valid = false // revalidation is the caller's (background task) job
		}
	}
	_ = p.store.PutPerson(pr)
}

func (p *Pipeline) isOurs(pubkey string) bool {
	return p.opts.MyPubkey != "" && p.opts.MyPubkey == pubkey
}

func (p *Pipeline) handleContactList(e *nostr.Event) {
	pr, err := p.store.GetPerson(e.PubKey)
	if err != nil {
		return
	}
	pr.RelayListLastReceived = time.Now()
	_ = p.store.PutPerson(pr)

	if p.isOurs(e.PubKey) {
		l, lerr := p.store.GetList(person.Followed, 0)
		if lerr == nil && l != nil {
			l.EventCreatedAt = time.Unix(int64(e.CreatedAt), 0)
			_ = p.store.PutList(l)
		}
		return
	}

	// Someone else's contact list: update their following graph by
	// recording each followed pubkey as a person worth knowing about.
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "p" {
			p.ensurePerson(t[1])
		}
	}

	if e.Content != "" {
		var relays map[string]struct {
			Read  bool `json:"read"`
			Write bool `json:"write"`
		}
		if json.Unmarshal([]byte(e.Content), &relays) == nil {
			for url, rw := range relays {
				edge, eerr := p.store.GetPersonRelay(e.PubKey, url)
				if eerr != nil {
					continue
				}
				edge.Read, edge.Write = rw.Read, rw.Write
				_ = p.store.PutPersonRelay(edge)
			}
		}
	}
}

func (p *Pipeline) handleMetadataOnlyList(e *nostr.Event) {
	if !p.isOurs(e.PubKey) {
		return
	}
	pr, err := p.store.GetPerson(e.PubKey)
	if err != nil {
		return
	}
	_ = p.store.PutPerson(pr)
}

func (p *Pipeline) handleRelayList(e *nostr.Event) {
	for _, t := range e.Tags {
		if len(t) < 2 || t[0] != "r" {
			continue
		}
		edge, err := p.store.GetPersonRelay(e.PubKey, t[1])
		if err != nil {
			continue
		}
		edge.Read, edge.Write = true, true
		if len(t) >= 3 {
			switch t[2] {
			case "read":
				edge.Write = false
			case "write":
				edge.Read = false
			}
		}
		_ = p.store.PutPersonRelay(edge)
	}
	pr, err := p.store.GetPerson(e.PubKey)
	if err == nil {
		pr.RelayListLastReceived = time.Now()
		pr.RelayListCreatedAt = time.Unix(int64(e.CreatedAt), 0)
		_ = p.store.PutPerson(pr)
	}
	p.seeker.Found(e)
}

func (p *Pipeline) handleDmRelayList(e *nostr.Event) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "relay" {
			p.ensureRelay(t[1])
		}
	}
}

func (p *Pipeline) handleRepost(e *nostr.Event) {
	if e.Content != "" {
		var inner nostr.Event
		if json.Unmarshal([]byte(e.Content), &inner) == nil && inner.ID != "" {
			_ = p.ProcessNewEvent(&inner, "", "", true, false)
			return
		}
	}
	for _, id := range eTagIDs(e) {
		p.seeker.Seek(id, "", nil)
	}
}

func (p *Pipeline) handleNostrConnect(e *nostr.Event) {
	if p.opts.NostrConnect != nil {
		p.opts.NostrConnect(e)
	}
}

func (p *Pipeline) handleUserServerList(e *nostr.Event) {
	if !p.isOurs(e.PubKey) {
		return
	}
	servers, err := blossom.ParseServerList(e)
	if err != nil {
		return
	}
	raw, _ := json.Marshal(servers)
	_ = p.store.SetSetting("blossom_servers", raw)
}

func (p *Pipeline) handleHandlerRecommendation(e *nostr.Event) {
	for _, t := range e.Tags {
		if len(t) >= 4 && t[0] == "a" && t[3] == "web" {
			p.dispatch.DispatchFetchNAddr(t[1])
		}
	}
}

func (p *Pipeline) handleHandlerInformation(e *nostr.Event) {
	dtag := ""
	var kinds []int
	name := ""
	webURL := ""
	for _, t := range e.Tags {
		if len(t) < 2 {
			continue
		}
		switch t[0] {
		case "d":
			dtag = t[1]
		case "k":
			if n, err := parseKindTag(t[1]); err == nil {
				kinds = append(kinds, n)
			}
		case "web":
			webURL = t[1]
		}
	}
	var md struct {
		Name string `json:"name"`
	}
	if json.Unmarshal([]byte(e.Content), &md) == nil {
		name = md.Name
	}
	_ = p.store.PutHandler(&store.Handler{
		Pubkey: e.PubKey, DTag: dtag, Kinds: kinds, Name: name, WebURL: webURL,
	})

	for _, k := range kinds {
		if existing, _ := p.store.GetConfiguredHandler(k); existing == nil {
			_ = p.store.PutConfiguredHandler(&store.ConfiguredHandler{
				Kind: k, HandlerID: e.PubKey + ":" + dtag, Enabled: true,
			})
		}
	}
}

func (p *Pipeline) handleGiftwrap(e *nostr.Event) {
	if p.opts.GiftwrapUnwrap == nil {
		return
	}
	rumor, ok := p.opts.GiftwrapUnwrap(e)
	if !ok || rumor == nil {
		return
	}
	rumor.ID = e.ID // keep the giftwrap's id so storage dedupes on it
	_ = p.ProcessNewEvent(rumor, "", "", false, true)
}

func (p *Pipeline) handleDeletion(e *nostr.Event) {
	for _, id := range eTagIDs(e) {
		target, err := p.store.GetEvent(id)
		if err != nil || target == nil {
			continue
		}
		if !p.opts.DeleteAuthorAllowed(target.PubKey, e.PubKey) {
			continue
		}
		if !isFeedDisplayable(target.Kind) {
			_ = p.store.DeleteEvent(id)
		}
	}
}
