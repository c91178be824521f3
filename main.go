package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	mbase "github.com/multiformats/go-multibase"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	golog "github.com/textileio/go-log/v2"

	"github.com/namebid/auctiond/httpapi"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/lib/commitment"
	"github.com/namebid/auctiond/lib/common"
	"github.com/namebid/auctiond/lib/dshelper"
	"github.com/namebid/auctiond/lib/dshelper/txndswrap"
	"github.com/namebid/auctiond/lib/eligibility"
	"github.com/namebid/auctiond/lib/finalizer"
	"github.com/namebid/auctiond/lib/peerflags"
	"github.com/namebid/auctiond/service"
)

var (
	cliName           = "auctiond"
	defaultConfigPath = filepath.Join(os.Getenv("HOME"), "."+cliName)
	log               = golog.Logger(cliName)
	v                 = viper.New()

	auctionsListFields = []string{"ID", "Listing", "Kind", "Status", "Extensions", "EndTime", "CreatedAt"}
)

func init() {
	_ = godotenv.Load(".env")
	configPath := os.Getenv("AUCTIOND_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	_ = godotenv.Load(filepath.Join(configPath, ".env"))

	rootCmd.AddCommand(initCmd, daemonCmd, idCmd, auctionsCmd, commitmentCmd, proofCmd)
	auctionsCmd.AddCommand(auctionsListCmd, auctionsShowCmd, auctionsPriceCmd,
		auctionsCreateCmd, auctionsSettleCmd, auctionsCancelCmd)

	commonFlags := []common.Flag{
		{
			Name:        "http-port",
			DefValue:    "9999",
			Description: "HTTP API listen address",
		},
	}
	daemonFlags := []common.Flag{
		{
			Name:        "tick-interval",
			DefValue:    time.Second * 10,
			Description: "How often due auctions are checked for settlement",
		},
		{
			Name:        "extension-cap",
			DefValue:    0,
			Description: "Max anti-sniping extensions per auction; 0 means uncapped",
		},
		{
			Name:        "mongo-uri",
			DefValue:    "",
			Description: "MongoDB URI backing auction state; if empty, an embedded store is used",
		},
		{
			Name:        "mongo-dbname",
			DefValue:    "auctiond",
			Description: "MongoDB database name backing auction state",
		},
		{Name: "metrics-addr", DefValue: ":9090", Description: "Prometheus listen address"},
		{Name: "log-debug", DefValue: false, Description: "Enable debug level log"},
		{Name: "log-json", DefValue: false, Description: "Enable structured logging"},
	}
	daemonFlags = append(daemonFlags, peerflags.Flags...)
	auctionsFlags := []common.Flag{{Name: "json", DefValue: false,
		Description: "output in json format instead of tabular print"}}
	auctionsListFlags := []common.Flag{{Name: "status", DefValue: "",
		Description: "filter by auction statuses, separated by comma"}}
	auctionsCreateFlags := []common.Flag{
		{Name: "listing", DefValue: "", Description: "Listing id of the domain name on sale; required"},
		{Name: "kind", DefValue: "dutch", Description: "Auction kind: dutch or sealed"},
		{Name: "seller", DefValue: "", Description: "Seller address; required"},
		{Name: "start-in", DefValue: time.Minute, Description: "Delay before bidding opens"},
		{Name: "duration", DefValue: time.Hour, Description: "Bidding window length"},
		{Name: "reveal-duration", DefValue: time.Hour, Description: "Reveal window length (sealed only)"},
		{Name: "start-price", DefValue: "", Description: "Start price in the smallest unit (dutch only)"},
		{Name: "floor-price", DefValue: "", Description: "Floor price in the smallest unit (dutch only)"},
		{Name: "curve", DefValue: "linear", Description: "Price curve: linear or quadratic (dutch only)"},
		{Name: "min-deposit", DefValue: "0", Description: "Minimum commitment deposit (sealed only)"},
		{Name: "protocol-bps", DefValue: uint64(0), Description: "Protocol fee in basis points"},
		{Name: "creator-bps", DefValue: uint64(0), Description: "Creator fee in basis points"},
		{Name: "anti-sniping", DefValue: time.Duration(0),
			Description: "Anti-sniping extension window; 0 disables"},
		{Name: "whitelist", DefValue: "",
			Description: "Comma-separated addresses allowed to bid; empty means open to all"},
	}
	commitmentFlags := []common.Flag{
		{Name: "amount", DefValue: "", Description: "Bid amount in the smallest unit; required"},
		{Name: "bidder", DefValue: "", Description: "Bidder address; required"},
	}
	proofFlags := []common.Flag{
		{Name: "whitelist-file", DefValue: "", Description: "File with one address per line; required"},
		{Name: "bidder", DefValue: "", Description: "Address to prove membership for; required"},
	}

	cobra.OnInitialize(func() {
		v.SetConfigType("json")
		v.SetConfigName("config")
		v.AddConfigPath(os.Getenv("AUCTIOND_PATH"))
		v.AddConfigPath(defaultConfigPath)
		_ = v.ReadInConfig()
	})

	common.ConfigureCLI(v, "AUCTIOND", commonFlags, rootCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", peerflags.Flags, initCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", daemonFlags, daemonCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", auctionsFlags, auctionsCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", auctionsListFlags, auctionsListCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", auctionsCreateFlags, auctionsCreateCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", commitmentFlags, commitmentCmd.PersistentFlags())
	common.ConfigureCLI(v, "AUCTIOND", proofFlags, proofCmd.PersistentFlags())
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "Auctiond runs auctions for tokenized domain-name listings",
	Long: `Auctiond runs auctions for tokenized domain-name listings.

It supports continuous-descending (Dutch) auctions and sealed commit-reveal
auctions, with whitelist and Merkle allow-list eligibility and anti-sniping
deadline extensions.

To get started, run 'auctiond init' and follow the instructions.
`,
	Args: cobra.ExactArgs(0),
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes auctiond configuration files",
	Long: `Initializes auctiond configuration files and generates a new keypair.

auctiond uses a repository in the local file system. By default, the repo is
located at ~/.auctiond. To change the repo location, set the $AUCTIOND_PATH
environment variable:

    export AUCTIOND_PATH=/path/to/auctiondrepo
`,
	Args: cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		path, err := peerflags.WriteConfig(v, "AUCTIOND_PATH", defaultConfigPath)
		common.CheckErrf("writing config: %v", err)
		fmt.Printf("Initialized configuration file: %s\n\n", path)

		_, key, err := mbase.Decode(v.GetString("private-key"))
		common.CheckErrf("decoding private key: %v", err)
		priv, err := crypto.UnmarshalPrivateKey(key)
		common.CheckErrf("unmarshaling private key: %v", err)
		id, err := peer.IDFromPrivateKey(priv)
		common.CheckErrf("getting peer id: %v", err)

		fmt.Printf(`Your peer id is %s.

Start the operator daemon with:

    auctiond daemon

Then create your first auction:

    auctiond auctions create --listing example.eth --seller [address] \
                             --start-price 1000000 --floor-price 100000
`, id)
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a network-connected auction operator",
	Long:  "Run a network-connected auction operator that announces auctions and handles bids.",
	Args:  cobra.ExactArgs(0),
	PersistentPreRun: func(c *cobra.Command, args []string) {
		common.ExpandEnvVars(v, v.AllSettings())
		err := common.ConfigureLogging(v, []string{
			cliName,
			"auctiond/service",
			"auctiond/engine",
			"auctiond/vault",
			"auctiond/api",
			"psrpc",
			"psrpc/peer",
			"psrpc/mdns",
		})
		common.CheckErrf("setting log levels: %v", err)
	},
	Run: func(c *cobra.Command, args []string) {
		pconfig, err := peerflags.GetConfig(v, "AUCTIOND_PATH", defaultConfigPath, true)
		common.CheckErrf("getting peer config: %v", err)

		settings, err := common.MarshalConfig(v, !v.GetBool("log-json"), "private-key", "mongo-uri")
		common.CheckErrf("marshaling config: %v", err)
		log.Infof("loaded config: %s", string(settings))

		fin := finalizer.NewFinalizer()
		repoPath := os.Getenv("AUCTIOND_PATH")
		if repoPath == "" {
			repoPath = defaultConfigPath
		}
		store, err := newStore(repoPath)
		common.CheckErrf("creating datastore: %v", err)
		fin.Add(store)

		err = common.SetupInstrumentation(v.GetString("metrics-addr"))
		common.CheckErrf("booting instrumentation: %v", err)

		config := service.Config{
			Peer:         pconfig,
			TickInterval: v.GetDuration("tick-interval"),
			ExtensionCap: v.GetInt("extension-cap"),
		}
		serv, err := service.New(config, store)
		common.CheckErrf("starting service: %v", err)
		fin.Add(serv)

		err = serv.Subscribe(true)
		common.CheckErrf("subscribing to the auction feed: %v", err)

		api, err := httpapi.NewServer(":"+v.GetString("http-port"), serv)
		common.CheckErrf("creating http API server: %v", err)
		fin.Add(api)

		common.HandleInterrupt(func() {
			common.CheckErr(fin.Cleanupf("closing service: %v", nil))
		})
	},
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Shows the id, public key and addresses of the operator peer",
	Args:  cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		res, err := http.Get(urlFor("id"))
		common.CheckErr(err)
		defer func() {
			err := res.Body.Close()
			common.CheckErr(err)
		}()
		b, _ := ioutil.ReadAll(res.Body)
		if res.StatusCode != http.StatusOK {
			log.Fatalf("%s: %s", res.Status, string(b))
		}
		fmt.Println(string(b))
	},
}

var auctionsCmd = &cobra.Command{
	Use: "auctions",
	Aliases: []string{
		"auction",
	},
	Short: "Interact with auctions",
	Long:  "Interact with auctions run by the local daemon.",
	Args:  cobra.ExactArgs(0),
}

var auctionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List auctions, optionally filtered by status",
	Args:  cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		var query string
		if status := v.GetString("status"); status != "" {
			query = fmt.Sprintf("?status=%s", url.QueryEscape(status))
		}
		auctions := getAuctions(urlFor("auctions") + query)
		if v.GetBool("json") {
			b, err := json.MarshalIndent(auctions, "", "\t")
			common.CheckErr(err)
			fmt.Println(string(b))
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.DiscardEmptyColumns)
		for i, a := range auctions {
			if i == 0 {
				for _, field := range auctionsListFields {
					_, err := fmt.Fprintf(w, "%s\t", field)
					common.CheckErr(err)
				}
				_, err := fmt.Fprintln(w, "")
				common.CheckErr(err)
			}
			value := reflect.ValueOf(a)
			for _, field := range auctionsListFields {
				_, err := fmt.Fprintf(w, "%v\t", value.FieldByName(field))
				common.CheckErr(err)
			}
			_, err := fmt.Fprintln(w, "")
			common.CheckErr(err)
		}
		_ = w.Flush()
	},
}

var auctionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of one auction",
	Long:  `Show details of one auction, specified by its ID, which can be obtained by 'auctiond auctions list'`,
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		a := getAuction(urlFor("auctions", args[0]))
		if v.GetBool("json") {
			b, err := json.MarshalIndent(a, "", "\t")
			common.CheckErr(err)
			fmt.Println(string(b))
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
		typ := reflect.TypeOf(a)
		value := reflect.ValueOf(a)
		for i := 0; i < typ.NumField(); i++ {
			_, err := fmt.Fprintf(w, "%s:\t%v\n", typ.Field(i).Name, value.Field(i))
			common.CheckErr(err)
		}
		_ = w.Flush()
		if !a.Status.Terminal() {
			fmt.Printf("\nBidding ends %s\n", humanize.Time(a.EndTime))
		}
	},
}

var auctionsPriceCmd = &cobra.Command{
	Use:   "price <id>",
	Short: "Quote the live Dutch price of an auction",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		res, err := http.Get(urlFor("auctions", args[0], "price"))
		common.CheckErr(err)
		defer func() {
			err := res.Body.Close()
			common.CheckErr(err)
		}()
		b, _ := ioutil.ReadAll(res.Body)
		if res.StatusCode != http.StatusOK {
			log.Fatalf("%s: %s", res.Status, string(b))
		}
		fmt.Println(string(b))
	},
}

var auctionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and announce a new auction",
	Args:  cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		start := time.Now().Add(v.GetDuration("start-in"))
		end := start.Add(v.GetDuration("duration"))
		req := httpapi.CreateRequest{
			Listing:     v.GetString("listing"),
			Kind:        v.GetString("kind"),
			Seller:      v.GetString("seller"),
			StartTime:   start,
			EndTime:     end,
			ProtocolBps: v.GetUint64("protocol-bps"),
			CreatorBps:  v.GetUint64("creator-bps"),
		}
		if ext := v.GetDuration("anti-sniping"); ext > 0 {
			req.AntiSnipingExtension = ext.String()
		}
		switch req.Kind {
		case "dutch":
			req.StartPrice = v.GetString("start-price")
			req.FloorPrice = v.GetString("floor-price")
			req.Curve = v.GetString("curve")
		case "sealed":
			req.RevealEnd = end.Add(v.GetDuration("reveal-duration"))
			req.MinDeposit = v.GetString("min-deposit")
		}
		if wl := v.GetString("whitelist"); wl != "" {
			addrs, err := parseAddressList(wl)
			common.CheckErrf("parsing whitelist: %v", err)
			payload, err := eligibility.EncodeWhitelist(addrs)
			common.CheckErrf("encoding whitelist: %v", err)
			req.Eligibility = "0x" + fmt.Sprintf("%x", payload)
		}

		body, err := json.Marshal(req)
		common.CheckErr(err)
		res, err := http.Post(urlFor("auctions"), "application/json", strings.NewReader(string(body)))
		common.CheckErr(err)
		defer func() {
			err := res.Body.Close()
			common.CheckErr(err)
		}()
		b, _ := ioutil.ReadAll(res.Body)
		if res.StatusCode != http.StatusCreated {
			log.Fatalf("%s: %s", res.Status, string(b))
		}
		fmt.Println(string(b))
	},
}

var auctionsSettleCmd = &cobra.Command{
	Use:   "settle <id>",
	Short: "Settle an auction whose settlement is due",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		put(urlFor("auctions", args[0], "settle"))
	},
}

var auctionsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an auction that has not settled",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		put(urlFor("auctions", args[0], "cancel"))
	},
}

var commitmentCmd = &cobra.Command{
	Use:   "commitment",
	Short: "Compute a sealed-bid commitment offline",
	Long: `Compute a sealed-bid commitment offline.

Generates a fresh random nonce, prints it together with the commit hash.
Keep the nonce; it is needed to reveal the bid.
`,
	Args: cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		amount, err := auction.ParseAmount(v.GetString("amount"))
		common.CheckErrf("parsing amount: %v", err)
		bidder, err := auction.ParseAddress(v.GetString("bidder"))
		common.CheckErrf("parsing bidder: %v", err)
		nonce, err := commitment.GenerateNonce()
		common.CheckErrf("generating nonce: %v", err)
		hash := commitment.ComputeCommitment(amount, nonce, bidder)
		fmt.Printf("nonce:       %s\ncommit hash: %s\n", nonce, hash.Hex())
	},
}

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Build a Merkle allow-list proof offline",
	Long: `Build a Merkle allow-list proof offline.

Reads a whitelist file with one address per line and prints the tree root and
the membership proof for the given bidder.
`,
	Args: cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		f, err := os.Open(v.GetString("whitelist-file"))
		common.CheckErrf("opening whitelist file: %v", err)
		defer func() { _ = f.Close() }()
		var whitelist []ethcommon.Address
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			addr, err := auction.ParseAddress(line)
			common.CheckErrf("parsing whitelist entry: %v", err)
			whitelist = append(whitelist, addr)
		}
		common.CheckErrf("reading whitelist file: %v", scanner.Err())

		bidder, err := auction.ParseAddress(v.GetString("bidder"))
		common.CheckErrf("parsing bidder: %v", err)
		proof, err := eligibility.BuildProof(whitelist, bidder)
		common.CheckErrf("building proof: %v", err)

		fmt.Printf("root: %s\nproof:\n", eligibility.MerkleRoot(whitelist).Hex())
		for _, h := range proof {
			fmt.Printf("  %s\n", h.Hex())
		}
	},
}

func main() {
	common.CheckErr(rootCmd.Execute())
}

func newStore(repoPath string) (txndswrap.TxnDatastore, error) {
	if uri := v.GetString("mongo-uri"); uri != "" {
		return dshelper.NewMongoTxnDatastore(uri, v.GetString("mongo-dbname"))
	}
	return dshelper.NewBadgerTxnDatastore(filepath.Join(repoPath, "auctionstore"))
}

func urlFor(parts ...string) string {
	u := "http://127.0.0.1:" + v.GetString("http-port")
	if len(parts) > 0 {
		u += "/" + path.Join(parts...)
	}
	return u
}

func put(u string) {
	req, err := http.NewRequest(http.MethodPut, u, nil)
	common.CheckErr(err)
	res, err := http.DefaultClient.Do(req)
	common.CheckErr(err)
	defer func() {
		err := res.Body.Close()
		common.CheckErr(err)
	}()
	b, _ := ioutil.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		log.Fatalf("%s: %s", res.Status, string(b))
	}
	if len(b) > 0 {
		fmt.Println(string(b))
	}
}

func getAuctions(u string) (auctions []auction.Auction) {
	res, err := http.Get(u)
	common.CheckErr(err)
	defer func() {
		err := res.Body.Close()
		common.CheckErr(err)
	}()
	if res.StatusCode != http.StatusOK {
		b, _ := ioutil.ReadAll(res.Body)
		log.Fatalf("%s: %s", res.Status, string(b))
	}
	decoder := json.NewDecoder(res.Body)
	err = decoder.Decode(&auctions)
	common.CheckErr(err)
	return
}

func getAuction(u string) (a auction.Auction) {
	res, err := http.Get(u)
	common.CheckErr(err)
	defer func() {
		err := res.Body.Close()
		common.CheckErr(err)
	}()
	if res.StatusCode != http.StatusOK {
		b, _ := ioutil.ReadAll(res.Body)
		log.Fatalf("%s: %s", res.Status, string(b))
	}
	decoder := json.NewDecoder(res.Body)
	err = decoder.Decode(&a)
	common.CheckErr(err)
	return
}

func parseAddressList(s string) ([]ethcommon.Address, error) {
	var addrs []ethcommon.Address
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := auction.ParseAddress(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
