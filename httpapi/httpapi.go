// Package httpapi exposes operator commands over a local http server.
package httpapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/namebid/auctiond/buildinfo"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/service/engine"
	"github.com/textileio/go-libp2p-pubsub-rpc/peer"
	golog "github.com/textileio/go-log/v2"
)

var (
	log = golog.Logger("auctiond/api")
)

// Service provides scoped access to the auctiond service.
type Service interface {
	PeerInfo() (*peer.Info, error)
	CreateAuction(a auction.Auction) (*auction.Auction, error)
	GetAuction(id auction.ID) (*auction.Auction, error)
	ListAuctions(query engine.Query) ([]*auction.Auction, error)
	CurrentPrice(id auction.ID) (*big.Int, error)
	CancelAuction(id auction.ID) error
	Settle(id auction.ID) (*auction.SettlementResult, error)
	HealthCheck() error
}

// NewServer returns a new http server for auctiond commands.
func NewServer(listenAddr string, service Service) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: createMux(service),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("stopping http server: %s", err)
		}
	}()

	log.Infof("http server started at %s", listenAddr)
	return httpServer, nil
}

func createMux(service Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", getOnly(healthHandler(service)))
	mux.HandleFunc("/id", getOnly(idHandler(service)))
	mux.HandleFunc("/version", getOnly(versionHandler))
	// allow both with and without trailing slash
	auctions := auctionsHandler(service)
	mux.HandleFunc("/auctions", auctions)
	mux.HandleFunc("/auctions/", auctions)
	return mux
}

func getOnly(f http.HandlerFunc) http.HandlerFunc {
	return methodOnly(http.MethodGet, f)
}

func methodOnly(method string, f http.HandlerFunc) http.HandlerFunc {
	msg := fmt.Sprintf("only %s method is allowed", method)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			httpError(w, msg, http.StatusBadRequest)
			return
		}
		f(w, r)
	}
}

func healthHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := service.HealthCheck(); err != nil {
			httpError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func idHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := service.PeerInfo()
		if err != nil {
			httpError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data, err := json.MarshalIndent(info, "", "\t")
		if err != nil {
			httpError(w, fmt.Sprintf("marshaling id: %s", err), http.StatusInternalServerError)
			return
		}
		_, err = w.Write(data)
		if err != nil {
			log.Errorf("write failed: %v", err)
		}
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(buildinfo.Summary()))
}

// auctionsHandler routes the /auctions tree:
//
//	GET  /auctions              list, optional ?status=active,reveal filter
//	POST /auctions              create
//	GET  /auctions/<id>         fetch one
//	GET  /auctions/<id>/price   live Dutch price quote
//	PUT  /auctions/<id>/settle  settle if due
//	PUT  /auctions/<id>/cancel  cancel
func auctionsHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urlParts := strings.SplitN(r.URL.Path, "/", 4)
		if len(urlParts) < 3 || urlParts[2] == "" {
			switch r.Method {
			case http.MethodGet:
				statusFilters := strings.Split(r.URL.Query().Get("status"), ",")
				listHandler(w, service, statusFilters)
			case http.MethodPost:
				createHandler(w, r, service)
			default:
				httpError(w, "only GET and POST methods are allowed", http.StatusBadRequest)
			}
			return
		}

		id := auction.ID(urlParts[2])
		action := ""
		if len(urlParts) == 4 {
			action = urlParts[3]
		}
		switch {
		case action == "" && r.Method == http.MethodGet:
			getHandler(w, service, id)
		case action == "price" && r.Method == http.MethodGet:
			priceHandler(w, service, id)
		case action == "settle" && r.Method == http.MethodPut:
			settleHandler(w, service, id)
		case action == "cancel" && r.Method == http.MethodPut:
			cancelHandler(w, service, id)
		default:
			httpError(w, "unknown route", http.StatusNotFound)
		}
	}
}

func listHandler(w http.ResponseWriter, service Service, statusFilters []string) {
	var filters []auction.Status
	for _, s := range statusFilters {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		st, err := auction.StatusByString(s)
		if err != nil {
			httpError(w, fmt.Sprintf("%s: %s", s, err), http.StatusBadRequest)
			return
		}
		filters = append(filters, st)
	}
	// for simplicity we apply filters after retrieving. if performance
	// becomes an issue, we can add query filters.
	fullList, err := service.ListAuctions(engine.Query{Limit: -1})
	if err != nil {
		httpError(w, fmt.Sprintf("listing auctions: %s", err), http.StatusInternalServerError)
		return
	}
	list := fullList
	if len(filters) > 0 {
		list = nil
		for _, a := range fullList {
			for _, status := range filters {
				if a.Status == status {
					list = append(list, a)
					break
				}
			}
		}
	}
	writeJSON(w, list)
}

func getHandler(w http.ResponseWriter, service Service, id auction.ID) {
	a, err := service.GetAuction(id)
	if err != nil {
		httpError(w, fmt.Sprintf("get auction: %s", err), statusFor(err))
		return
	}
	writeJSON(w, a)
}

func priceHandler(w http.ResponseWriter, service Service, id auction.ID) {
	price, err := service.CurrentPrice(id)
	if err != nil {
		httpError(w, fmt.Sprintf("quoting price: %s", err), statusFor(err))
		return
	}
	writeJSON(w, map[string]string{"price": price.String()})
}

func settleHandler(w http.ResponseWriter, service Service, id auction.ID) {
	res, err := service.Settle(id)
	if err != nil {
		httpError(w, fmt.Sprintf("settling: %s", err), statusFor(err))
		return
	}
	writeJSON(w, res)
}

func cancelHandler(w http.ResponseWriter, service Service, id auction.ID) {
	if err := service.CancelAuction(id); err != nil {
		httpError(w, fmt.Sprintf("canceling: %s", err), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CreateRequest is the JSON body for POST /auctions. Amounts are base-10
// strings in the smallest currency unit; durations use Go syntax ("30s").
type CreateRequest struct {
	Listing              string    `json:"listing"`
	Kind                 string    `json:"kind"`
	Seller               string    `json:"seller"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	RevealEnd            time.Time `json:"reveal_end,omitempty"`
	AntiSnipingExtension string    `json:"anti_sniping_extension,omitempty"`
	ProtocolBps          uint64    `json:"protocol_bps"`
	CreatorBps           uint64    `json:"creator_bps"`
	Eligibility          string    `json:"eligibility,omitempty"`

	StartPrice string `json:"start_price,omitempty"`
	FloorPrice string `json:"floor_price,omitempty"`
	Curve      string `json:"curve,omitempty"`

	MinDeposit      string `json:"min_deposit,omitempty"`
	MinIncrementBps uint64 `json:"min_increment_bps,omitempty"`
}

func createHandler(w http.ResponseWriter, r *http.Request, service Service) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, fmt.Sprintf("decoding body: %s", err), http.StatusBadRequest)
		return
	}
	a, err := req.toAuction()
	if err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	saved, err := service.CreateAuction(*a)
	if err != nil {
		httpError(w, fmt.Sprintf("creating auction: %s", err), statusFor(err))
		return
	}
	data, err := json.Marshal(saved)
	if err != nil {
		httpError(w, fmt.Sprintf("json encoding: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if _, err := w.Write(data); err != nil {
		log.Errorf("write failed: %v", err)
	}
}

func (req *CreateRequest) toAuction() (*auction.Auction, error) {
	kind, err := auction.KindByString(req.Kind)
	if err != nil {
		return nil, err
	}
	seller, err := auction.ParseAddress(req.Seller)
	if err != nil {
		return nil, fmt.Errorf("seller: %v", err)
	}
	a := &auction.Auction{
		Listing:   auction.ListingID(req.Listing),
		Kind:      kind,
		Seller:    seller,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Fees: auction.Fees{
			ProtocolBps: req.ProtocolBps,
			CreatorBps:  req.CreatorBps,
		},
	}
	if req.AntiSnipingExtension != "" {
		ext, err := time.ParseDuration(req.AntiSnipingExtension)
		if err != nil {
			return nil, fmt.Errorf("anti-sniping extension: %v", err)
		}
		a.AntiSnipingExtension = ext
	}
	if req.Eligibility != "" {
		payload, err := hexutil.Decode(req.Eligibility)
		if err != nil {
			return nil, fmt.Errorf("eligibility: %v", err)
		}
		a.Eligibility = payload
	}
	switch kind {
	case auction.KindDutch:
		start, err := auction.ParseAmount(req.StartPrice)
		if err != nil {
			return nil, fmt.Errorf("start price: %v", err)
		}
		floor, err := auction.ParseAmount(req.FloorPrice)
		if err != nil {
			return nil, fmt.Errorf("floor price: %v", err)
		}
		curve := auction.CurveLinear
		if req.Curve != "" {
			if curve, err = auction.CurveByString(req.Curve); err != nil {
				return nil, err
			}
		}
		a.Dutch = &auction.DutchParams{
			StartPrice: start,
			FloorPrice: floor,
			Duration:   req.EndTime.Sub(req.StartTime),
			Curve:      curve,
		}
	case auction.KindSealed:
		minDeposit := big.NewInt(0)
		if req.MinDeposit != "" {
			if minDeposit, err = auction.ParseAmount(req.MinDeposit); err != nil {
				return nil, fmt.Errorf("min deposit: %v", err)
			}
		}
		a.Sealed = &auction.SealedParams{
			MinDeposit:      minDeposit,
			MinIncrementBps: req.MinIncrementBps,
		}
		a.RevealStart = req.EndTime
		a.RevealEnd = req.RevealEnd
	}
	return a, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		httpError(w, fmt.Sprintf("json encoding: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		log.Errorf("write failed: %v", err)
	}
}

// statusFor maps engine error classes to http statuses.
func statusFor(err error) int {
	switch auction.ErrorClassOf(err) {
	case auction.ClassNotFound:
		return http.StatusNotFound
	case auction.ClassValidation, auction.ClassIntegrity:
		return http.StatusBadRequest
	case auction.ClassState:
		return http.StatusConflict
	case auction.ClassResource:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func httpError(w http.ResponseWriter, err string, status int) {
	log.Debugf("request error: %s", err)
	http.Error(w, err, status)
}
