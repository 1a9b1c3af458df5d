// Package domain contains the core entities shared by the inspection engine:
// redirect expansions, signals, risk results and inspection reports. These
// types carry no infrastructure concerns so they can cross package borders
// freely (resolver, aggregator, HTTP handlers and caches).
package domain
