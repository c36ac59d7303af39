package enrichment

import (
	"context"
	"net"

	"github.com/sentineltrace/threat-intel/internal/model"
)

// DNSProvider resolves forward records for domains and reverse (PTR)
// records for IPs using the standard resolver.
//
// Grounded on original_source/src/enrichment/dns.rs.
type DNSProvider struct {
	resolver *net.Resolver
}

// NewDNSProvider builds a provider using the default system resolver.
func NewDNSProvider() *DNSProvider {
	return &DNSProvider{resolver: net.DefaultResolver}
}

func (p *DNSProvider) Name() string           { return "dns" }
func (p *DNSProvider) EnrichmentType() string { return "dns" }
func (p *DNSProvider) TTLHours() int64        { return 24 }

func (p *DNSProvider) Supports(t model.IocType) bool {
	return t == model.IocTypeDomain || t == model.IocTypeIP
}

func (p *DNSProvider) Enrich(ctx context.Context, indicator model.Indicator) (*Document, error) {
	var data model.DNSData
	found := false

	switch indicator.IocType {
	case model.IocTypeIP:
		names, err := p.resolver.LookupAddr(ctx, indicator.Value)
		if err == nil && len(names) > 0 {
			data.PTRRecords = names
			found = true
		}
	case model.IocTypeDomain:
		if ips, err := p.resolver.LookupIP(ctx, "ip4", indicator.Value); err == nil {
			for _, ip := range ips {
				data.ARecords = append(data.ARecords, ip.String())
			}
		}
		if ips, err := p.resolver.LookupIP(ctx, "ip6", indicator.Value); err == nil {
			for _, ip := range ips {
				data.AAAARecords = append(data.AAAARecords, ip.String())
			}
		}
		if mxs, err := p.resolver.LookupMX(ctx, indicator.Value); err == nil {
			for _, mx := range mxs {
				data.MXRecords = append(data.MXRecords, mx.Host)
			}
		}
		if txts, err := p.resolver.LookupTXT(ctx, indicator.Value); err == nil {
			data.TXTRecords = txts
		}
		if nss, err := p.resolver.LookupNS(ctx, indicator.Value); err == nil {
			for _, ns := range nss {
				data.NSRecords = append(data.NSRecords, ns.Host)
			}
		}
		found = len(data.ARecords) > 0 || len(data.AAAARecords) > 0 || len(data.MXRecords) > 0 ||
			len(data.TXTRecords) > 0 || len(data.NSRecords) > 0
	}

	if !found {
		return nil, nil
	}
	return NewDocument(data)
}
