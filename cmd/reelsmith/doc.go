// Command reelsmith drives the production pipeline from the terminal:
// create outputs, execute gated stages, review and approve or reject their
// results, and steer corrections scene by scene.
package main
