package server

import (
	"net/http"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// healthHandler wires a storage round-trip check into go-sundheit,
// exactly the way cmd/dex/serve.go registers its "storage" check.
func (s *Server) healthHandler() http.Handler {
	checker := gosundheit.New()
	checker.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "storage",
			CheckFunc: storage.NewCustomHealthCheckFunc(s.Storage, s.Now),
		},
		ExecutionPeriod:  15 * time.Second,
		InitiallyPassing: true,
	})
	return gosundheithttp.HandleHealthJSON(checker)
}
