package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// gameLedgerABI covers the parts of the game contract the server touches.
const gameLedgerABI = `[
	{"type":"function","name":"updatePlayerData","stateMutability":"nonpayable",
	 "inputs":[{"name":"player","type":"address"},{"name":"scoreAmount","type":"uint256"},{"name":"transactionAmount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"getPlayerData","stateMutability":"view",
	 "inputs":[{"name":"player","type":"address"}],
	 "outputs":[{"name":"score","type":"uint256"},{"name":"transactionCount","type":"uint256"}]},
	{"type":"function","name":"getAllPlayersCount","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getPlayerByIndex","stateMutability":"view",
	 "inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"PlayerDataUpdated","anonymous":false,
	 "inputs":[{"name":"player","type":"address","indexed":true},{"name":"newScore","type":"uint256","indexed":false},{"name":"newTransactionCount","type":"uint256","indexed":false}]}
]`

const (
	methodUpdatePlayer  = "updatePlayerData"
	methodPlayerData    = "getPlayerData"
	methodPlayersCount  = "getAllPlayersCount"
	methodPlayerByIndex = "getPlayerByIndex"
	eventPlayerUpdated  = "PlayerDataUpdated"
)

// playerUpdatedTopic is topic[0] of PlayerDataUpdated logs.
var playerUpdatedTopic = crypto.Keccak256Hash([]byte("PlayerDataUpdated(address,uint256,uint256)"))

func parseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(gameLedgerABI))
}
