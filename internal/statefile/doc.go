// Package statefile stores a homogeneous collection of data units across a
// sequence of numbered shard files ("cracks") inside one directory per
// substate.
//
// # Overview
//
// A [Container] is opened with [New] for a (file layer, directory, substate)
// triple. It discovers the existing cracks named sf.<n>.<substate>.<ext>,
// orders them oldest first, eagerly loads the newest one and adopts its
// metadata and schema. A new substate starts with one empty crack.
//
// Every crack holds a metadata snapshot, the schema ("unittype") as of its
// last write and the data units themselves:
//
//	{"meta": {"substate": "orders", "crack": 2, ...}, "unittype": {...}, "data": [...]}
//
// # Strategies
//
// Loading, saving, retrieval and mutation are delegated to pluggable
// strategies ([Loader], [Saver], [Retriever], [Manipulator]). The defaults
// load older cracks lazily, write through the file layer, address units by
// global index and append to the newest crack, rolling over to a new crack
// once it holds [Container.Limit] units.
//
// # Persistence
//
// When the simul flag is set (the default) every mutation is persisted
// before it returns. Otherwise the container is only marked dirty and
// persistence is left to the saver ([BatchSaver]) or to [Container.Flush].
//
// # Concurrency
//
// A Container is not safe for concurrent use and assumes it is the only
// writer of its directory.
package statefile
