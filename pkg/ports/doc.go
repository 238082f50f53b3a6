/*
Package ports defines the driven ports (interfaces) of the Arbor designer.

These interfaces decouple the editing core from external implementations, allowing
it to work with various storage backends, rendering surfaces and transports.

# Key Interfaces

  - DocumentStore: persists and loads versioned documents.
  - RectSource: answers where an instance is rendered on the canvas.
  - ComponentRegistry: answers what a component type allows.
  - Transport: carries encoded bus messages between processes.
  - DistributedLocker: coordinates document access across replicas.
*/
package ports
