package s3

import "testing"

func TestNewClient(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "  "}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}

	cases := []struct {
		endpoint string
		useSSL   bool
		scheme   string
		host     string
	}{
		{endpoint: "localhost:9000", scheme: "http", host: "localhost:9000"},
		{endpoint: "localhost:9000", useSSL: true, scheme: "https", host: "localhost:9000"},
		{endpoint: "https://storage.example.com/", scheme: "https", host: "storage.example.com"},
		{endpoint: "http://minio:9000", useSSL: true, scheme: "http", host: "minio:9000"},
	}
	for _, tc := range cases {
		client, err := NewClient(Config{Endpoint: tc.endpoint, UseSSL: tc.useSSL, AccessKey: "k", SecretKey: "s"})
		if err != nil {
			t.Fatalf("%s: %v", tc.endpoint, err)
		}
		u := client.EndpointURL()
		if u.Scheme != tc.scheme || u.Host != tc.host {
			t.Fatalf("%s: unexpected endpoint %s", tc.endpoint, u)
		}
	}
}
