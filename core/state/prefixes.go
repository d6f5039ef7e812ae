package state

var (
	accountPrefix     = []byte("account/")
	offerRecordPrefix = []byte("lending/offer/")
	offerSeqKeyBytes  = []byte("lending/offers/next")
	listingsKeyBytes  = []byte("lending/listings")
	listedPairPrefix  = []byte("lending/listed/")
	historyPrefix     = []byte("lending/history/")
	nftTokenPrefix    = []byte("nft/token/")
	poolKeyBytes      = []byte("lendpool/state")
	genesisKeyBytes   = []byte("genesis/applied")
)
