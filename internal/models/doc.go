// Package models defines the core domain records for Tally.
//
// # Records
//
//   - Person: a chat user known to the system, shared across groups
//   - Group: a chat group with a fixed currency and a member roster
//   - Member: a person's participation in one group, with a running balance
//   - Transaction: a signed expense recorded against a member
//   - Settlement: a proposed payment between two persons with a lifecycle status
//
// # Design Principles
//
//  1. **Arena storage**: every record is keyed by an opaque UUID and refers to
//     related records by ID only. There are no bidirectional object graphs;
//     the store owns all relationships.
//  2. **Exact amounts**: every monetary field is a money.Money. Amounts are
//     parsed into exact decimals at the system boundary and never pass
//     through binary floating point.
//  3. **Append-only ledger**: transactions are immutable once recorded.
//     A member's Balance is maintained incrementally by the store and always
//     equals the exact sum of that member's transaction amounts.
//  4. **Derived settlements**: settlements are solver output, not ledger
//     truth. They never feed back into member balances.
package models
