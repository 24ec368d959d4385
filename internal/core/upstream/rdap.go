package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/openrdap/rdap"

	"github.com/routelens/routelens/internal/core"
)

// RDAP resolves registration records for ASNs and addresses. With no Server
// the openrdap client follows the IANA bootstrap registry.
type RDAP struct {
	Fetcher *Client
	Client  *rdap.Client
	Server  string
}

// Autnum looks up the registration of an ASN.
func (r *RDAP) Autnum(ctx context.Context, asn string, opts Options) FetchResult {
	key := r.key("autnum", asn)
	n, err := strconv.ParseUint(asn, 10, 32)
	if err != nil {
		return r.fetcher().Run(ctx, key, opts, failing(fmt.Errorf("invalid asn %q", asn)))
	}

	return r.fetcher().Run(ctx, key, opts, func(ctx context.Context) (Response, error) {
		req := rdap.NewAutnumRequest(uint32(n))
		return r.do(ctx, req, key)
	})
}

// IPNetwork looks up the registration of the network containing ip.
func (r *RDAP) IPNetwork(ctx context.Context, ip string, opts Options) FetchResult {
	key := r.key("ip", ip)
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return r.fetcher().Run(ctx, key, opts, failing(fmt.Errorf("invalid ip %q", ip)))
	}

	return r.fetcher().Run(ctx, key, opts, func(ctx context.Context) (Response, error) {
		req := rdap.NewIPRequest(parsed)
		return r.do(ctx, req, key)
	})
}

func (r *RDAP) do(ctx context.Context, req *rdap.Request, fallbackURL string) (Response, error) {
	if server := r.serverURL(); server != nil {
		req = req.WithServer(server)
	}
	req = req.WithContext(ctx)

	client := r.Client
	if client == nil {
		client = &rdap.Client{}
	}

	resp, err := client.Do(req)
	status, requestURL := rdapStatus(resp, fallbackURL)
	out := Response{URL: requestURL, Status: status}

	if err != nil {
		if isObjectMissing(err) && status == 0 {
			out.Status = 404
		}
		if out.Status > 0 {
			// non-2xx status is reported by Run as "HTTP <status>"
			return out, nil
		}
		return out, err
	}

	entry, ok := registrationEntry(resp.Object)
	if !ok {
		return out, fmt.Errorf("unexpected rdap object %T", resp.Object)
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return out, err
	}
	if out.Status == 0 {
		out.Status = 200
	}
	out.Body = body
	return out, nil
}

func (r *RDAP) key(kind, value string) string {
	if server := r.serverURL(); server != nil {
		return strings.TrimRight(server.String(), "/") + "/" + kind + "/" + value
	}
	return "rdap:" + kind + "/" + value
}

func (r *RDAP) serverURL() *url.URL {
	if r == nil || strings.TrimSpace(r.Server) == "" {
		return nil
	}
	parsed, err := url.Parse(strings.TrimSpace(r.Server))
	if err != nil || parsed.Host == "" {
		return nil
	}
	return parsed
}

func (r *RDAP) fetcher() *Client {
	if r != nil && r.Fetcher != nil {
		return r.Fetcher
	}
	return &Client{}
}

// ParseRegistration decodes a payload produced by an RDAP lookup.
func ParseRegistration(raw json.RawMessage) *core.RegistrationEntry {
	if len(raw) == 0 {
		return nil
	}
	var entry core.RegistrationEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil
	}
	return &entry
}

func registrationEntry(object any) (core.RegistrationEntry, bool) {
	switch obj := object.(type) {
	case *rdap.Autnum:
		entry := core.RegistrationEntry{
			Handle:  obj.Handle,
			Name:    obj.Name,
			Type:    obj.Type,
			Country: obj.Country,
		}
		if obj.StartAutnum != nil {
			entry.Start = strconv.FormatUint(uint64(*obj.StartAutnum), 10)
		}
		if obj.EndAutnum != nil {
			entry.End = strconv.FormatUint(uint64(*obj.EndAutnum), 10)
		}
		return entry, true
	case *rdap.IPNetwork:
		return core.RegistrationEntry{
			Handle:  obj.Handle,
			Name:    obj.Name,
			Type:    obj.Type,
			Country: obj.Country,
			Start:   obj.StartAddress,
			End:     obj.EndAddress,
			Parent:  obj.ParentHandle,
		}, true
	default:
		return core.RegistrationEntry{}, false
	}
}

func rdapStatus(resp *rdap.Response, fallbackURL string) (int, string) {
	if resp == nil || len(resp.HTTP) == 0 || resp.HTTP[0] == nil {
		return 0, fallbackURL
	}
	requestURL := fallbackURL
	if strings.TrimSpace(resp.HTTP[0].URL) != "" {
		requestURL = resp.HTTP[0].URL
	}
	if resp.HTTP[0].Response == nil {
		return 0, requestURL
	}
	return resp.HTTP[0].Response.StatusCode, requestURL
}

func isObjectMissing(err error) bool {
	clientErr, ok := err.(*rdap.ClientError)
	return ok && clientErr.Type == rdap.ObjectDoesNotExist
}

func failing(err error) Transport {
	return func(context.Context) (Response, error) {
		return Response{}, err
	}
}
