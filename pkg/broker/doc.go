/*
Package broker submits worker jobs to the message queues.

JobQueue abstracts the broker: Submit publishes a job on a named queue and
returns the generated task id, Revoke broadcasts a cancellation. AMQPQueue
is the production implementation on RabbitMQ; jobs are persistent JSON
messages, revocations fan out on the orchestra.revoke exchange so every
worker sees them. MockQueue records submissions in process for tests and
mock mode, with a one-shot failure switch to simulate an outage.

Each job carries a Callback block (URL plus node credentials) telling the
worker where to report progress and completion.
*/
package broker
