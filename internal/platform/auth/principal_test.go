package auth

import (
	"net/http"
	"testing"
)

func TestPrincipalFromHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    Principal
		ok      bool
	}{
		{
			"admin",
			map[string]string{HeaderActorID: "adm_1", HeaderActorType: "admin"},
			Principal{ID: "adm_1", Type: PrincipalTypeAdmin},
			true,
		},
		{
			"partner with binding",
			map[string]string{HeaderActorID: "usr_9", HeaderActorType: "partner", HeaderPartnerID: "ptn_a"},
			Principal{ID: "usr_9", Type: PrincipalTypePartner, PartnerID: "ptn_a"},
			true,
		},
		{
			"partner without binding rejected",
			map[string]string{HeaderActorID: "usr_9", HeaderActorType: "partner"},
			Principal{},
			false,
		},
		{
			"unknown type rejected",
			map[string]string{HeaderActorID: "usr_9", HeaderActorType: "superuser"},
			Principal{},
			false,
		},
		{
			"anonymous",
			map[string]string{},
			Principal{},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			for k, v := range tc.headers {
				header.Set(k, v)
			}
			got, ok := PrincipalFromHeaders(header)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("expected (%+v, %v), got (%+v, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}
