// Command ledgernode is the node process entrypoint: a
// flag.NewFlagSet per subcommand, dispatched on os.Args[1], wiring an
// in-memory chain, mempool, and peer node together.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	death "github.com/vrecan/death/v3"

	"github.com/kilimba-labs/ledgerchain/chain"
	"github.com/kilimba-labs/ledgerchain/internal/idgen"
	"github.com/kilimba-labs/ledgerchain/internal/xlog"
	"github.com/kilimba-labs/ledgerchain/mempool"
	"github.com/kilimba-labs/ledgerchain/miner"
	"github.com/kilimba-labs/ledgerchain/node"
	"github.com/kilimba-labs/ledgerchain/wallet"
	"github.com/kilimba-labs/ledgerchain/wire"
)

const defaultPort = 60000

var log = xlog.For("cmd")

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println(" createwallet -node ID - create a new wallet address in the node's keystore")
	fmt.Println(" listaddresses -node ID - list the addresses in the node's keystore")
	fmt.Println(" startnode -node ID [-port PORT] [-miner ADDRESS] [-peer IP:PORT] - start a node, optionally mining and/or joining a peer")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "createwallet":
		runCreateWallet(os.Args[2:])
	case "listaddresses":
		runListAddresses(os.Args[2:])
	case "startnode":
		runStartNode(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func runCreateWallet(args []string) {
	fs := flag.NewFlagSet("createwallet", flag.ExitOnError)
	nodeID := fs.String("node", "", "node ID whose keystore to add to")
	_ = fs.Parse(args)

	ws, err := wallet.Load(*nodeID)
	if err != nil {
		log.WithError(err).Fatal("load keystore")
	}
	addr, err := ws.AddKeyPair()
	if err != nil {
		log.WithError(err).Fatal("generate key pair")
	}
	if err := ws.Save(*nodeID); err != nil {
		log.WithError(err).Fatal("save keystore")
	}
	fmt.Println("New address:", addr)
}

func runListAddresses(args []string) {
	fs := flag.NewFlagSet("listaddresses", flag.ExitOnError)
	nodeID := fs.String("node", "", "node ID whose keystore to list")
	_ = fs.Parse(args)

	ws, err := wallet.Load(*nodeID)
	if err != nil {
		log.WithError(err).Fatal("load keystore")
	}
	for _, addr := range ws.Addresses() {
		fmt.Println(addr)
	}
}

func runStartNode(args []string) {
	fs := flag.NewFlagSet("startnode", flag.ExitOnError)
	nodeID := fs.String("node", "", "node ID (selects its keystore file)")
	port := fs.Int("port", defaultPort, "TCP port to listen on")
	minerAddr := fs.String("miner", "", "public key to receive mining rewards; enables mining when set")
	peerAddr := fs.String("peer", "", "ip:port of an initial peer to connect to")
	networkFlag := fs.String("network", "mainnet", "mainnet or testnet")
	_ = fs.Parse(args)

	log.WithFields(logrus.Fields{"node": *nodeID, "port": *port}).Info("starting node")

	networkID, err := resolveNetworkID(*networkFlag)
	if err != nil {
		log.WithError(err).Fatal("resolve network")
	}

	ledger := chain.New()
	pool := mempool.New()

	kind := node.Full
	if *minerAddr != "" {
		kind = node.SoloMiner
	}

	n, err := node.New(kind, *port, idgen.Uint64(), networkID, ledger, pool)
	if err != nil {
		log.WithError(err).Fatal("construct node")
	}
	if err := n.Listen(fmt.Sprintf(":%d", *port)); err != nil {
		log.WithError(err).Fatal("listen")
	}

	if *peerAddr != "" {
		host, portStr, splitErr := splitHostPort(*peerAddr)
		if splitErr != nil {
			log.WithError(splitErr).Fatal("parse peer address")
		}
		peerPort, convErr := strconv.Atoi(portStr)
		if convErr != nil {
			log.WithError(convErr).Fatal("parse peer port")
		}
		if err := n.AddPeer(host, peerPort); err != nil {
			log.WithError(err).Warn("connect to peer")
		}
	}

	stop := make(chan struct{})
	go runLoop(n, pool, ledger, *minerAddr, stop)

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		close(stop)
		if err := n.StopListening(); err != nil {
			log.WithError(err).Warn("stop listener")
		}
	})
}

func runLoop(n *node.Node, pool *mempool.Mempool, ledger *chain.Chain, minerAddr string, stop <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.Flush()
			if minerAddr != "" {
				mineOnce(pool, ledger, minerAddr)
			}
		}
	}
}

func resolveNetworkID(name string) (uint64, error) {
	switch name {
	case "mainnet":
		return wire.MainnetNetworkID, nil
	case "testnet":
		return wire.TestnetNetworkID, nil
	default:
		return 0, errors.New("unknown network: " + name)
	}
}

func splitHostPort(addr string) (string, string, error) {
	return net.SplitHostPort(addr)
}

func mineOnce(pool *mempool.Mempool, ledger *chain.Chain, minerAddr string) {
	tip := ledger.Tip()
	block, err := miner.CreateBlock(pool, tip, 0, minerAddr, nil)
	if err != nil {
		log.WithError(err).Warn("create block")
		return
	}
	if len(block.Transactions) == 0 {
		return
	}
	if err := miner.MineNextBlock(&block, 0, ^uint64(0), miner.DefaultMeter()); err != nil {
		log.WithError(err).Warn("mine block")
		return
	}
	if err := ledger.PushBlock(block); err != nil {
		log.WithError(err).Warn("push mined block")
		return
	}
	log.WithFields(logrus.Fields{"index": block.Index, "hash": block.Hash}).Info("mined block")
}
