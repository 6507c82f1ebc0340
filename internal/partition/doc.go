// Package partition fans one upscaling job out into independent segment
// pipelines and reassembles their outputs in source order.
//
// An Orchestrator moves through created, planned, running, merging and done;
// any failure moves it to failed and the whole job is abandoned. Partition
// order is fixed at planning time by the splitter's segment names and is the
// only order Merge ever uses.
package partition
