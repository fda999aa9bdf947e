package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes("hubType: regional, startDate:2024-03-01 08:00:00")
	if err != nil {
		t.Fatalf("ParseAttributes: %v", err)
	}
	if attrs["hubType"] != "regional" {
		t.Fatalf("hubType = %q", attrs["hubType"])
	}
	if attrs["startDate"] != "2024-03-01 08:00:00" {
		t.Fatalf("startDate = %q", attrs["startDate"])
	}
	if attrs, err := ParseAttributes(""); err != nil || len(attrs) != 0 {
		t.Fatalf("empty attributes = %v, %v", attrs, err)
	}
	if _, err := ParseAttributes("novalue"); err == nil {
		t.Fatalf("malformed attribute accepted")
	}
}

func TestLoadNodesCSV(t *testing.T) {
	path := writeFile(t, "nodes.csv", "name,label,attributes\nA,COVERAGEAREA,\nH,WAREHOUSE,\"hubType:regional,capacity:40\"\n")
	nodes, err := LoadNodesCSV(path)
	if err != nil {
		t.Fatalf("LoadNodesCSV: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
	if !nodes[1].IsHub() || nodes[0].IsHub() {
		t.Fatalf("hub detection wrong: %+v %+v", nodes[0], nodes[1])
	}
	if nodes[1].Attributes["capacity"] != "40" {
		t.Fatalf("capacity = %q", nodes[1].Attributes["capacity"])
	}
}

func TestLoadLinksCSV(t *testing.T) {
	path := writeFile(t, "links.csv", strings.Join([]string{
		"node1,node1_label,link,attributes,node2,node2_label",
		`A,COVERAGEAREA,CONNECTED_TO,"id:L1,cost:10,startDate:2024-03-01T01:00:00Z,endDate:2024-03-01T03:00:00Z,paymentType:COD,restrictedMerchants:m1|m2,operatedBy:acme",B,CITY`,
		`B,CITY,,"cost:2.5,startDate:2024-03-01 04:00:00,endDate:2024-03-01 06:00:00",C,CITY`,
	}, "\n"))
	links, err := LoadLinksCSV(path)
	if err != nil {
		t.Fatalf("LoadLinksCSV: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	l := links[0]
	if l.ID != "L1" || l.From != "A" || l.To != "B" || l.Cost != 10 || l.PaymentType != "COD" || l.OperatedBy != "acme" {
		t.Fatalf("link = %+v", l)
	}
	if len(l.RestrictedMerchants) != 2 || l.RestrictedMerchants[1] != "m2" {
		t.Fatalf("restricted = %v", l.RestrictedMerchants)
	}
	want := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	if !l.StartDate.Equal(want) {
		t.Fatalf("startDate = %v, want %v", l.StartDate, want)
	}
	second := links[1]
	if second.ID != "B-C-20240301T040000Z-20240301T060000Z" || second.Type != models.DefaultLinkType || second.PaymentType != models.PaymentTypeBoth {
		t.Fatalf("defaults not applied: %+v", second)
	}
}

func TestLoadLinksCSVDerivesStableIDs(t *testing.T) {
	path := writeFile(t, "links.csv", strings.Join([]string{
		"node1,node1_label,link,attributes,node2,node2_label",
		`A,COVERAGEAREA,,"cost:1,startDate:2024-03-01 01:00:00,endDate:2024-03-01 02:00:00,operatedBy:acme",B,CITY`,
		`A,COVERAGEAREA,,"cost:1,startDate:2024-03-01 01:00:00,endDate:2024-03-01 02:00:00,operatedBy:zeta",B,CITY`,
		`A,COVERAGEAREA,,"cost:1,startDate:2024-03-01 05:00:00,endDate:2024-03-01 06:00:00,operatedBy:acme",B,CITY`,
	}, "\n"))
	first, err := LoadLinksCSV(path)
	if err != nil {
		t.Fatalf("LoadLinksCSV: %v", err)
	}
	again, err := LoadLinksCSV(path)
	if err != nil {
		t.Fatalf("LoadLinksCSV: %v", err)
	}
	seen := make(map[string]bool)
	for i, l := range first {
		if l.ID != again[i].ID {
			t.Fatalf("link %d id changed between loads: %s vs %s", i, l.ID, again[i].ID)
		}
		if seen[l.ID] {
			t.Fatalf("duplicate id %s", l.ID)
		}
		seen[l.ID] = true
	}
	if first[0].ID != "A-B-20240301T010000Z-20240301T020000Z-acme" {
		t.Fatalf("id = %s", first[0].ID)
	}
}

func TestLoadLinksCSVReportsLine(t *testing.T) {
	path := writeFile(t, "links.csv", "node1,node1_label,link,attributes,node2,node2_label\nA,X,,\"startDate:soon,endDate:later\",B,Y\n")
	_, err := LoadLinksCSV(path)
	if err == nil || !strings.Contains(err.Error(), "links.csv:2") {
		t.Fatalf("err = %v, want file and line", err)
	}
}

func TestLoadOrdersCSV(t *testing.T) {
	path := writeFile(t, "orders.csv", "tracking_no,origin_zone,destination_zone,created_on,payment_type,agent_app\nT1,A,C,2024-03-01 00:00:00,COD,shopx\n")
	orders, err := LoadOrdersCSV(path)
	if err != nil {
		t.Fatalf("LoadOrdersCSV: %v", err)
	}
	if len(orders) != 1 || orders[0].TrackingNo != "T1" || orders[0].AgentApp != "shopx" {
		t.Fatalf("orders = %+v", orders)
	}

	bad := writeFile(t, "orders.csv", "tracking_no,origin_zone,destination_zone,created_on\n,A,C,2024-03-01 00:00:00\n")
	if _, err := LoadOrdersCSV(bad); err == nil {
		t.Fatalf("order without tracking number accepted")
	}
}

func TestLoadNetworkYAML(t *testing.T) {
	path := writeFile(t, "network.yaml", `
nodes:
  - name: A
    label: COVERAGEAREA
  - name: H
    label: HUB
links:
  - id: L1
    from: A
    to: H
    cost: 4
    startDate: "2024-03-01T01:00:00Z"
    endDate: "2024-03-01 03:00:00"
    restrictedMerchants: [m1]
orders:
  - trackingNo: T1
    originZone: A
    destinationZone: H
    createdOn: "2024-03-01T00:00:00Z"
    paymentType: PREPAID
    agentApp: m2
`)
	doc, err := LoadNetworkYAML(path)
	if err != nil {
		t.Fatalf("LoadNetworkYAML: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Links) != 1 || len(doc.Orders) != 1 {
		t.Fatalf("doc = %d nodes, %d links, %d orders", len(doc.Nodes), len(doc.Links), len(doc.Orders))
	}
	l := doc.Links[0]
	if l.Cost != 4 || l.PaymentType != models.PaymentTypeBoth || l.RestrictedMerchants[0] != "m1" {
		t.Fatalf("link = %+v", l)
	}
	if got := l.EndDate.Sub(l.StartDate); got != 2*time.Hour {
		t.Fatalf("duration = %v, want 2h", got)
	}
	if !doc.Nodes[1].IsHub() {
		t.Fatalf("H should be a hub")
	}
}
